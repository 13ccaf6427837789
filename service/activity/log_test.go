package activity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_NewestFirst(t *testing.T) {
	log := NewLog(3)

	sig := "SIG123"
	log.Append("first", nil)
	log.Append("second", &sig)
	log.Append("third", nil)

	records := log.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Label)
	assert.Equal(t, "second", records[1].Label)
	assert.Equal(t, "first", records[2].Label)

	require.NotNil(t, records[1].Signature)
	assert.Equal(t, "SIG123", *records[1].Signature)
	assert.Nil(t, records[0].Signature)
}

func TestAppend_EvictsOldest(t *testing.T) {
	log := NewLog(3)

	for i := 1; i <= 5; i++ {
		log.Append(fmt.Sprintf("entry-%d", i), nil)
	}

	records := log.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "entry-5", records[0].Label)
	assert.Equal(t, "entry-4", records[1].Label)
	assert.Equal(t, "entry-3", records[2].Label)
}

func TestAppend_UniqueIDs(t *testing.T) {
	log := NewLog(3)

	a := log.Append("a", nil)
	b := log.Append("b", nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.ID)
}

func TestAppend_CopiesSignature(t *testing.T) {
	log := NewLog(3)

	sig := "SIG456"
	rec := log.Append("transfer", &sig)

	// Mutating the caller's string must not reach the stored record.
	sig = "mutated"
	require.NotNil(t, rec.Signature)
	assert.Equal(t, "SIG456", *rec.Signature)
}

func TestRecords_SnapshotIsolation(t *testing.T) {
	log := NewLog(3)
	log.Append("only", nil)

	snapshot := log.Records()
	snapshot[0].Label = "tampered"

	assert.Equal(t, "only", log.Records()[0].Label)
}

func TestAppend_ConcurrentWriters(t *testing.T) {
	log := NewLog(3)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.Append(fmt.Sprintf("entry-%d", n), nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, log.Len())
}

func TestNewLog_DefaultCapacity(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < 10; i++ {
		log.Append("x", nil)
	}
	assert.Equal(t, DefaultCapacity, log.Len())
}
