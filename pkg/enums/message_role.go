package enums

import "fmt"

// MessageRole distinguishes who authored a conversation message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

var validMessageRoles = []MessageRole{
	MessageRoleUser,
	MessageRoleAssistant,
	MessageRoleSystem,
}

func (m MessageRole) String() string {
	return string(m)
}

func (m MessageRole) IsValid() bool {
	for _, candidate := range validMessageRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMessageRole(value string) (MessageRole, error) {
	for _, candidate := range validMessageRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message role %q", value)
}
