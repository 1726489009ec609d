package protocol

// This package implements the encoding and decoding of the protocol spoken
// between an inertial/environmental sensor and the bridge that drives it.
//
// This protocol aims to be
//
// - trivially implementable on a microcontroller
// - fixed size per message type, so lengths can be checked before decoding
// - human readable enough to debug with netcat
//
// - `Command` - An instruction from the bridge to the sensor.
// - `StatusFrame` - A periodic measurement pushed from the sensor.
// - `Reading` - A StatusFrame scaled to physical units.
//
// === General Syntax
//
// - messages are `\r\n` delimited
// - every message starts with a three character tag
// - binary payloads are little-endian and hex encoded using uppercase digits
//
// === Start streaming
//
//  ```
//    > #03<interval>\r\n
//  ```
//
// Where `<interval>` is the 2 byte little-endian interval in milliseconds,
// hex encoded. An interval of 0 is invalid. The sensor does not acknowledge
// commands, it simply starts (or re-times) its stream.
//
// For example, start streaming every second:
//
//  ```
//    > #03E803\r\n
//  ```
//
// === Stop streaming
//
//  ```
//    > #09\r\n
//  ```
//
// === Status frames
//
// While streaming, the sensor sends one frame per elapsed interval.
//
//  ```
//    < $11<payload>\r\n
//  ```
//
// `<payload>` is 10 bytes, hex encoded (20 characters), made up of five
// little-endian fields:
//
//  | field           | type | unit      |
//  |-----------------|------|-----------|
//  | supply voltage  | u16  | mV        |
//  | env temperature | i16  | 0.1 °C    |
//  | yaw             | i16  | 0.1 °     |
//  | pitch           | i16  | 0.1 °     |
//  | roll            | i16  | 0.1 °     |
//
// A complete status frame is always 25 bytes long.
//
