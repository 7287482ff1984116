package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyflow/internal/action"
)

func TestWriteFiring_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f := createTestFiring("f1", "volume", 3)
	f.FromRelease = true
	f.MetaState = 4096
	f.Satisfied = false
	require.NoError(t, s.WriteFiring(ctx, f))

	got, err := s.ReadFiring(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestWriteFiring_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f := createTestFiring("f1", "volume", 1)
	require.NoError(t, s.WriteFiring(ctx, f))
	require.NoError(t, s.WriteFiring(ctx, f))

	firings, err := s.ReadFirings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, firings, 1)
}

func TestWriteFiring_RejectsUnknownKind(t *testing.T) {
	s := createTestStore(t)

	f := createTestFiring("f1", "volume", 1)
	f.Kind = "pressed"
	assert.Error(t, s.WriteFiring(context.Background(), f))
}

func TestWritePerform_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteFiring(ctx, createTestFiring("f1", "volume", 1)))

	p := Perform{
		Seq:       2,
		FiringID:  "f1",
		KeyMapUID: "volume",
		Action: action.Data{
			Kind:   action.KindIntent,
			Text:   "<b>&</b>",
			Extras: map[string]string{"z": "1", "a": "2"},
		},
		Event:     action.Down,
		MetaState: 1,
		Error:     "adapter offline",
		At:        testEpoch,
	}
	require.NoError(t, s.WritePerform(ctx, p))

	got, err := s.ReadPerforms(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
}

func TestWritePerform_WithoutFiring(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := createTestPerform("", "volume", 1)
	p.Event = action.Up
	require.NoError(t, s.WritePerform(ctx, p))

	all, err := s.ReadAllPerforms(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].FiringID)
}

func TestWritePerform_UnknownFiring(t *testing.T) {
	s := createTestStore(t)

	err := s.WritePerform(context.Background(), createTestPerform("missing", "volume", 1))
	assert.Error(t, err, "foreign key must reject performs for unknown firings")
}

func TestMarshalAction(t *testing.T) {
	got, err := marshalAction(action.Data{Kind: action.KindText, Text: "a<b", Extras: map[string]string{"y": "1", "x": "2"}})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"text","text":"a<b","extras":{"x":"2","y":"1"}}`, got)

	back, err := unmarshalAction(got)
	require.NoError(t, err)
	assert.Equal(t, "a<b", back.Text)
}
