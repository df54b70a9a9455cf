package console

import (
	"fmt"

	"github.com/fatih/color"
)

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// Celsius formats a temperature the way every command prints it.
func Celsius(t float64) string {
	return White(fmt.Sprintf("%.4f°C", t))
}
