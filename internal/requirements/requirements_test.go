package requirements

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

func TestExtractParsesSummaryBullets(t *testing.T) {
	set := Extract(protocol.Card{Summary: []string{
		"Product: USB-C cables, 1m, braided",
		"Quantity: 5,000 units",
		"Customization: logo printing",
		"Custom packaging: gift box",
		"Lead Time: 4 weeks",
		"Incoterms: FOB",
		"Shipping: Sea freight to Rotterdam",
		"Budget: 10:00 call to discuss",
		"no separator here",
	}})

	assert.Equal(t, "USB-C cables, 1m, braided", set.Product)
	assert.Equal(t, "5,000 units", set.Quantity)
	assert.Equal(t, []string{"logo printing", "gift box"}, set.Customization)
	assert.Equal(t, "4 weeks", set.LeadTime)
	assert.Equal(t, "FOB", set.Incoterms)
	assert.Equal(t, "Sea freight to Rotterdam", set.Shipping)
	assert.Len(t, set.Raw, 9)
}

func TestExtractKeepsValueColons(t *testing.T) {
	set := Extract(protocol.Card{Summary: []string{"Lead time: ready by 09:30 Monday"}})
	assert.Equal(t, "ready by 09:30 Monday", set.LeadTime)
}

func TestExtractEmptyCard(t *testing.T) {
	set := Extract(protocol.Card{})
	assert.NotNil(t, set.Raw)
	assert.Empty(t, set.Product)
	assert.Nil(t, AttachmentURLs(protocol.Card{}))
}

func TestNewStoreWithoutDSNIsInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemoryStore{}, s)
}

func TestMemoryStoreSaveGetList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Save(ctx, Record{SessionID: "a", Requirements: Set{Product: "cables", Raw: []string{"Product: cables"}}})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.SubmittedAt.IsZero())

	second, err := s.Save(ctx, Record{SessionID: "b", Requirements: Set{Product: "mugs"}})
	require.NoError(t, err)
	_, err = s.Save(ctx, Record{SessionID: "a", Requirements: Set{Product: "bags"}})
	require.NoError(t, err)

	got, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "mugs", got.Requirements.Product)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bags", all[0].Requirements.Product, "newest first")

	forA, err := s.List(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, "bags", forA[0].Requirements.Product)

	got, err = s.Get(ctx, first.ID)
	require.NoError(t, err)
	got.Requirements.Raw[0] = "mutated"
	again, _ := s.Get(ctx, first.ID)
	assert.Equal(t, "Product: cables", again.Requirements.Raw[0])
}

func TestMemoryStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, Record{SessionID: "s"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, "s", 0)
	require.NoError(t, err)
	assert.Len(t, all, 32)
}
