package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/storefront/pkg/storage"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"cancelled", fmt.Errorf("wrap: %w", context.Canceled), KindCancelled},
		{"no documents", mongo.ErrNoDocuments, KindNotFound},
		{"blob missing", fmt.Errorf("x: %w", storage.ErrNotFound), KindNotFound},
		{"unauthorized", mongo.CommandError{Code: 13, Message: "not authorized"}, KindPermission},
		{"stepped down", mongo.CommandError{Code: 189}, KindUnavailable},
		{"unindexed sort", mongo.CommandError{Code: 292}, KindOrderingUnsupported},
		{"bad value", mongo.CommandError{Code: 2}, KindInvalidConfig},
		{"other server error", mongo.CommandError{Code: 12345}, KindInternal},
		{"transient label", mongo.CommandError{Code: 1, Labels: []string{"TransientTransactionError"}}, KindUnavailable},
		{"classified", &Error{Op: "x", Kind: KindPermission}, KindPermission},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestErrorMatchesSentinels(t *testing.T) {
	err := E("get businesses/b1", mongo.ErrNoDocuments)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	assert.False(t, IsTransient(err))

	err = E("list", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTransient)
	assert.True(t, IsTransient(err))

	err = &Error{Op: "dial", Kind: KindInvalidConfig}
	assert.ErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrTransient)

	assert.Nil(t, E("noop", nil))
}
