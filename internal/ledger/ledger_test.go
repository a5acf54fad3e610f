package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(merchant, amount string) Record {
	return Record{
		Date:          "2024-02-10",
		Time:          "14:30:00",
		Merchant:      merchant,
		Amount:        amount,
		Category:      "Food",
		Mood:          "Happy",
		Location:      "Downtown",
		CalendarEvent: "None",
		GroupID:       "1",
		BalanceAfter:  "5000",
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user returns not found", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.List(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Revision(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("append preserves insertion order", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Append(ctx, "alice", sampleRecord("First", "10")))
		require.NoError(t, s.Append(ctx, "alice", sampleRecord("Second", "20")))
		require.NoError(t, s.Append(ctx, "alice", sampleRecord("Third", "30")))

		recs, err := s.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "First", recs[0].Merchant)
		assert.Equal(t, "Third", recs[2].Merchant)
	})

	t.Run("revision changes on append", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Append(ctx, "bob", sampleRecord("A", "10")))
		before, err := s.Revision(ctx, "bob")
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, "bob", sampleRecord("B", "20")))
		after, err := s.Revision(ctx, "bob")
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Append(ctx, "alice", sampleRecord("A", "10")))
		_, err := s.List(ctx, "bob")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCSVStore(t *testing.T) {
	ctx := context.Background()

	t.Run("append creates file with header", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewCSVStore(dir)
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, "alice", sampleRecord("Cafe", "120.50")))

		data, err := os.ReadFile(filepath.Join(dir, "user_alice.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Date,Time,Merchant")
		assert.Contains(t, string(data), "Cafe")
	})

	t.Run("round trips records", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewCSVStore(dir)
		require.NoError(t, err)

		want := sampleRecord("Grocer", "89.99")
		require.NoError(t, s.Append(ctx, "bob", want))
		require.NoError(t, s.Append(ctx, "bob", sampleRecord("Cinema", "250")))

		recs, err := s.List(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, want, recs[0])
		assert.Equal(t, "Cinema", recs[1].Merchant)
	})

	t.Run("revision changes on append", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewCSVStore(dir)
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, "carol", sampleRecord("A", "10")))
		before, err := s.Revision(ctx, "carol")
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, "carol", sampleRecord("B", "20")))
		after, err := s.Revision(ctx, "carol")
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("missing user returns not found", func(t *testing.T) {
		s, err := NewCSVStore(t.TempDir())
		require.NoError(t, err)
		_, err = s.List(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReadCSV(t *testing.T) {
	t.Run("missing file returns not found", func(t *testing.T) {
		_, _, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returns header index and data rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "user_x.csv")
		content := "Date,Time,Merchant,Amount,Category,Mood,Location,Calendar_Event,Group_ID,Balance_After\n" +
			"2024-01-01,10:00:00,Shop,50,Food,Happy,Home,None,1,900\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		rows, header, err := ReadCSV(path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 2, header["Merchant"])
		assert.Equal(t, "Shop", rows[0][header["Merchant"]])
	})
}
