package ledger

import (
	"errors"
	"sync"
	"testing"

	"kuyumcu-backend/internal/events"
	"kuyumcu-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturingPublisher) Publish(_ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func installCapture(t *testing.T) *capturingPublisher {
	t.Helper()
	pub := &capturingPublisher{}
	prev := events.SetPublisher(pub)
	t.Cleanup(func() { events.SetPublisher(prev) })
	return pub
}

func TestRecordTransaction_OwnTransactionPublishesEvent(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)
	pub := installCapture(t)

	_, appErr := RecordTransaction(db, RecordInput{
		ShopID:          shop.ID,
		AccountType:     models.AccountTypeSupplier,
		AccountID:       sup.ID,
		Direction:       DirectionDebit,
		Amount:          d("500"),
		TransactionType: "purchase",
		Description:     "Alış",
		CreatedBy:       1,
	})
	require.Nil(t, appErr)

	assert.Equal(t, 1, pub.count())
}

func TestRecordTransaction_RolledBackOuterTransactionSignalsNothing(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)
	pub := installCapture(t)

	sentinel := errors.New("sonraki adım başarısız")
	txErr := db.Transaction(func(tx *gorm.DB) error {
		_, appErr := RecordTransaction(tx, RecordInput{
			ShopID:          shop.ID,
			AccountType:     models.AccountTypeSupplier,
			AccountID:       sup.ID,
			Direction:       DirectionDebit,
			Amount:          d("750"),
			TransactionType: "purchase",
			Description:     "Alış",
			CreatedBy:       1,
		})
		require.Nil(t, appErr)
		// defter kaydından sonraki adım patlarsa her şey geri alınmalı
		return sentinel
	})
	require.ErrorIs(t, txErr, sentinel)

	assert.Equal(t, 0, pub.count(), "geri alınan transaction event yayınlamamalı")
	assert.Equal(t, int64(0), entryCount(t, db))

	var reloaded models.Supplier
	require.NoError(t, db.First(&reloaded, sup.ID).Error)
	assert.True(t, reloaded.CurrentBalance.IsZero())
}

func TestRecordTransaction_NestedEntrySignaledByOuterCommitter(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)
	pub := installCapture(t)

	var entry *models.LedgerEntry
	txErr := db.Transaction(func(tx *gorm.DB) error {
		e, appErr := RecordTransaction(tx, RecordInput{
			ShopID:          shop.ID,
			AccountType:     models.AccountTypeSupplier,
			AccountID:       sup.ID,
			Direction:       DirectionDebit,
			Amount:          d("300"),
			TransactionType: "purchase",
			Description:     "Alış",
			CreatedBy:       1,
		})
		if appErr != nil {
			return appErr
		}
		entry = e
		return nil
	})
	require.NoError(t, txErr)
	require.NotNil(t, entry)

	// iç içe çağrı kendi başına yayın yapmaz, commit eden çağırır
	assert.Equal(t, 0, pub.count())
	SignalRecorded(entry)
	assert.Equal(t, 1, pub.count())
}

func TestSignalRecorded_SkipsNilEntries(t *testing.T) {
	pub := installCapture(t)
	SignalRecorded(nil)
	assert.Equal(t, 0, pub.count())
}
