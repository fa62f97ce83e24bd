package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/domain"
)

func TestBookEventWireFormat(t *testing.T) {
	b, err := Encode(domain.NewBookEvent(domain.BookStatusChanged, book()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventType":"BOOK_STATUS_CHANGED","bookId":7,"title":"Dune","author":"Herbert","category":"SciFi","status":"AVAILABLE"}`, string(b))
}

func TestMembershipEventWireFormat(t *testing.T) {
	u := &domain.User{ID: 9, Email: "x@y.z", Name: "Xi", MembershipEndDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)}
	e := domain.NewMembershipExpiredEvent(u).WithDedupKey(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	b, err := Encode(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":9,"email":"x@y.z","name":"Xi","membershipEndDate":"2026-02-28","reason":"MEMBERSHIP_EXPIRED"}`, string(b))

	back, err := DecodeMembership(b)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", back.MembershipEndDate)
	assert.Empty(t, back.DedupKey())
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{`{`, `[]`, `{"bookId":1}`} {
		_, err := DecodeBook([]byte(in))
		assert.ErrorIs(t, err, domain.ErrSerialization, in)
	}
	_, err := DecodeMembership([]byte(`{"userId":1}`))
	assert.ErrorIs(t, err, domain.ErrSerialization)
}
