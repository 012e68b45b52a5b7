package service

import (
	"errors"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

func isNotFound(err error) bool {
	return errors.Is(err, playthrough.ErrNotFound)
}
