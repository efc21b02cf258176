// Package telemetry defines the joint telemetry wire types and the text frame
// codec shared by publishers and subscribers.
//
// A frame is a single text message of the form
//
//	{topic} {json}
//
// where {json} is a serialized [RobotState]. The topic is an ASCII token with
// no embedded whitespace; the first space in a frame separates it from the
// payload. There is no length prefix and no compression.
//
// # Example
//
//	frame, _ := telemetry.Encode("robot_joints", state)
//	topic, decoded, err := telemetry.Decode(frame)
//
// Wire values carry no bounds. Clamping is a registry concern, see package
// registry.
package telemetry
