package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail wraps err in a red exit message.
func Fail(what string, err error) cli.ExitCoder {
	return Exit(1, "%s: %s", what, Red(err))
}
