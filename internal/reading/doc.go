// Package reading defines the normalized sensor sample shared by every stage
// of the pipeline, plus the normalization rules both source adapters use to
// turn a raw key-value record into a Reading.
//
// A Reading is a plain value: Timestamp, Temperature (°C), Humidity (%),
// Flame (raw ADC) and Light (raw ADC). Values are never range-checked;
// implausible sensor output flows through unmodified.
//
// FromFields applies the normalization rules:
//   - keys are matched case-insensitively, with aliases
//     (humidite→humidity, ldr→light, temp→temperature)
//   - missing fields default to zero
//   - numbers may be JSON numbers or numeric strings; anything else in a
//     recognized field is ErrInvalidField
//   - Flame and Light are rounded to the nearest integer
//   - the "timestamp" field (milliseconds since epoch) is only consumed when
//     Options.UseTimestamp is set; otherwise the fallback time is used
package reading
