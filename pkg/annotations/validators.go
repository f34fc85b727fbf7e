package annotations

import "github.com/segmentio/encoding/json"

type PutAnnotationPayload struct {
	Data json.RawMessage `json:"data" validate:"required"`
}
