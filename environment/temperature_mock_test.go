package environment

import (
	"context"
	"fmt"
	"testing"
)

func TestMockTemperatureSensor_StaticValue(t *testing.T) {
	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) { return 22.5, nil })
	ctx := context.Background()

	temp, err := sensor.ReadTemperature(ctx)
	if err != nil {
		t.Fatalf("ReadTemperature: unexpected error: %v", err)
	}
	if temp != 22.5 {
		t.Errorf("expected temperature 22.5, got %f", temp)
	}

	temp32, err := sensor.GetTemperature(ctx)
	if err != nil {
		t.Fatalf("GetTemperature: unexpected error: %v", err)
	}
	if temp32 != 22.5 {
		t.Errorf("expected temperature 22.5, got %f", temp32)
	}
}

func TestMockTemperatureSensor_Initialize(t *testing.T) {
	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) { return 0, nil })
	if sensor.Address() != 72 {
		t.Errorf("expected default address 72, got %d", sensor.Address())
	}
	if err := sensor.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sensor.Address() != 75 {
		t.Errorf("expected address 75, got %d", sensor.Address())
	}
}

func TestMockTemperatureSensor_CounterBehavior(t *testing.T) {
	counter := 0
	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) {
		counter++
		return 20.0 + float64(counter)*0.0625, nil
	})
	ctx := context.Background()

	temp1, _ := sensor.ReadTemperature(ctx)
	if temp1 != 20.0625 {
		t.Errorf("first reading: expected 20.0625, got %f", temp1)
	}
	temp2, _ := sensor.ReadTemperature(ctx)
	if temp2 != 20.125 {
		t.Errorf("second reading: expected 20.125, got %f", temp2)
	}
}

func TestMockTemperatureSensor_ErrorHandling(t *testing.T) {
	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) {
		return 0, fmt.Errorf("temperature sensor error")
	})
	_, err := sensor.ReadTemperature(context.Background())
	if err == nil || err.Error() != "temperature sensor error" {
		t.Errorf("ReadTemperature: expected specific error, got %v", err)
	}
}
