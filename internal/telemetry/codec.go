package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// wireState accepts both the robot_id and source_id spellings of the
// producer identifier. robot_id wins when both are present.
type wireState struct {
	Timestamp uint64         `json:"timestamp"`
	RobotID   *string        `json:"robot_id"`
	SourceID  *string        `json:"source_id"`
	Joints    []JointReading `json:"joints"`
}

// Encode renders state as a "{topic} {json}" frame.
func Encode(topic string, state RobotState) (string, error) {
	if err := ValidateTopic(topic); err != nil {
		return "", err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("telemetry: encode state %d: %w", state.Timestamp, err)
	}
	var b strings.Builder
	b.Grow(len(topic) + 1 + len(payload))
	b.WriteString(topic)
	b.WriteByte(' ')
	b.Write(payload)
	return b.String(), nil
}

// Decode splits frame on its first space and parses the JSON payload.
func Decode(frame string) (string, RobotState, error) {
	topic, payload, ok := strings.Cut(frame, " ")
	if !ok {
		return "", RobotState{}, &DecodeError{Kind: MissingSeparator, Frame: frame}
	}
	if topic == "" {
		return "", RobotState{}, &DecodeError{Kind: EmptyTopic, Frame: frame}
	}

	if !strings.HasPrefix(strings.TrimSpace(payload), "{") {
		return "", RobotState{}, &DecodeError{Kind: InvalidPayload, Frame: frame,
			Err: fmt.Errorf("payload is not a JSON object")}
	}
	var w wireState
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return "", RobotState{}, &DecodeError{Kind: InvalidPayload, Frame: frame, Err: err}
	}

	state := RobotState{Timestamp: w.Timestamp, Joints: w.Joints}
	switch {
	case w.RobotID != nil:
		state.SourceID = *w.RobotID
	case w.SourceID != nil:
		state.SourceID = *w.SourceID
	}
	for i, j := range state.Joints {
		if j.Name == "" {
			return "", RobotState{}, &DecodeError{Kind: InvalidReading, Frame: frame,
				Err: fmt.Errorf("joint %d: %w", i, ErrEmptyJointName)}
		}
	}
	return topic, state, nil
}

// ValidateTopic rejects empty topics and topics containing whitespace.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.IndexFunc(topic, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidTopic, topic)
	}
	return nil
}
