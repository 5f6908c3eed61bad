package services

import (
	"encoding/json"
	"errors"

	"corpus/internal/models"
	"corpus/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, models.ErrNotFound)
}

func jsonMarshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
