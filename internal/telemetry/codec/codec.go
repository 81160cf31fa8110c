// Package codec turns raw device payloads into canonical telemetry samples.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

// ErrMalformed marks a payload that is not a well-formed device message.
// The ingest session reports it to the device and keeps the connection open.
var ErrMalformed = errors.New("codec: malformed payload")

// Device payload field names. The device sends one flat JSON object per
// sample; unknown keys are ignored.
const (
	fieldTemperature = "t"
	fieldHumidity    = "h"
	fieldDustVoltage = "dustV"
	fieldDustDensity = "dust"
	fieldLightRaw    = "ldr"
	fieldLightPct    = "ldrPct"
	fieldTiltAngle   = "tilt"
	fieldVoltage     = "v"
	fieldCurrent     = "i"
	fieldPower       = "p"
)

// Decode parses a raw device message into a Sample. Absent or non-numeric
// fields stay nil. Power is always recomputed as voltage*current when both
// are present, overriding any device-supplied value. Light percent outside
// [0,100] is treated as unknown. Decode has no side effects.
func Decode(raw []byte) (telemetry.Sample, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return telemetry.Sample{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload == nil {
		return telemetry.Sample{}, fmt.Errorf("%w: null payload", ErrMalformed)
	}

	fields := make(map[string]json.Number, len(payload))
	for key, value := range payload {
		if num, ok := value.(json.Number); ok {
			fields[key] = num
		}
	}

	sample := telemetry.Sample{
		Temperature: numeric(fields, fieldTemperature),
		Humidity:    numeric(fields, fieldHumidity),
		DustVoltage: numeric(fields, fieldDustVoltage),
		DustDensity: numeric(fields, fieldDustDensity),
		LightRaw:    numeric(fields, fieldLightRaw),
		LightPct:    numeric(fields, fieldLightPct),
		TiltAngle:   numeric(fields, fieldTiltAngle),
		Voltage:     numeric(fields, fieldVoltage),
		Current:     numeric(fields, fieldCurrent),
		Power:       numeric(fields, fieldPower),
	}

	if sample.Voltage != nil && sample.Current != nil {
		sample.Power = telemetry.Float(*sample.Voltage * *sample.Current)
	}
	if sample.LightPct != nil && (*sample.LightPct < 0 || *sample.LightPct > 100) {
		sample.LightPct = nil
	}
	return sample, nil
}

func numeric(fields map[string]json.Number, key string) *float64 {
	num, ok := fields[key]
	if !ok {
		return nil
	}
	value, err := num.Float64()
	if err != nil {
		return nil
	}
	return telemetry.Float(value)
}
