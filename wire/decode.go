package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Decode parses one event envelope (`{"type": ..., "properties": {...}}`)
// into its typed payload. Unknown discriminants return ErrUnknownType so
// callers can skip them without treating the stream as broken.
func Decode(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid event JSON")
	}
	typ := gjson.GetBytes(data, "type").String()
	if typ == "" {
		return nil, errors.New("event missing type discriminant")
	}
	props := gjson.GetBytes(data, "properties")
	raw := []byte(props.Raw)
	if !props.Exists() {
		raw = []byte("{}")
	}

	decode := func(v any) (any, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, errors.Wrapf(err, "decode %s properties", typ)
		}
		return v, nil
	}

	switch typ {
	case TypeMessageUpdated:
		return decode(&MessageUpdated{})
	case TypeMessagePartUpdated:
		return decode(&MessagePartUpdated{})
	case TypeMessageRemoved:
		return decode(&MessageRemoved{})
	case TypeMessagePartRemoved:
		return decode(&MessagePartRemoved{})
	case TypeSessionUpdated:
		return decode(&SessionUpdated{})
	case TypeSessionDeleted:
		return decode(&SessionDeleted{})
	case TypeSessionIdle:
		return decode(&SessionIdle{})
	case TypeSessionCompacted:
		return decode(&SessionCompacted{})
	case TypeSessionError:
		return decode(&SessionError{})
	case TypePermissionUpdated:
		return decode(&PermissionUpdated{})
	case TypePermissionReplied:
		return decode(&PermissionReplied{})
	case TypeQuestionAsked:
		return decode(&QuestionAsked{})
	case TypeQuestionReplied:
		return decode(&QuestionReplied{})
	case TypeQuestionRejected:
		return decode(&QuestionRejected{})
	case TypeToastShow:
		return decode(&ToastShow{})
	default:
		return nil, errors.Wrap(ErrUnknownType, typ)
	}
}

var ErrUnknownType = errors.New("unknown event type")
