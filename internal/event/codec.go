package event

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"library-lending/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode(e domain.Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrSerialization, "encode %s: %v", e.Kind(), err)
	}
	return b, nil
}

func DecodeBook(b []byte) (*domain.BookEvent, error) {
	var e domain.BookEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrapf(domain.ErrSerialization, "decode book event: %v", err)
	}
	if e.EventType == "" {
		return nil, errors.Wrap(domain.ErrSerialization, "decode book event: missing eventType")
	}
	return &e, nil
}

func DecodeMembership(b []byte) (*domain.MembershipExpiredEvent, error) {
	var e domain.MembershipExpiredEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrapf(domain.ErrSerialization, "decode membership event: %v", err)
	}
	if e.Email == "" {
		return nil, errors.Wrap(domain.ErrSerialization, "decode membership event: missing email")
	}
	return &e, nil
}
