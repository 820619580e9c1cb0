package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"kuyumcu-backend/internal/config"
	"kuyumcu-backend/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Publisher - defter olaylarını dış dünyaya yayınlar
type Publisher interface {
	Publish(topic string, event any) error
}

var (
	defaultPublisher Publisher = noopPublisher{}
	defaultTopic     string
)

func Init(cfg *config.Config) {
	if cfg.KafkaBrokers == "" {
		return
	}
	defaultTopic = cfg.KafkaTopic
	defaultPublisher = &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
			Balancer: &kafka.LeastBytes{},
		},
	}
	config.GetLogger().Infof("Kafka event yayını aktif: %s", cfg.KafkaTopic)
}

// SetPublisher - varsayılan yayıncıyı değiştirir ve öncekini döndürür.
// nil geçilirse noop yayıncıya dönülür.
func SetPublisher(p Publisher) Publisher {
	prev := defaultPublisher
	if p == nil {
		p = noopPublisher{}
	}
	defaultPublisher = p
	return prev
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func (p *KafkaPublisher) Publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: payload,
	})
}

// LedgerEntryRecorded - bir defter kaydı yazıldığında yayınlanır
type LedgerEntryRecorded struct {
	EntryID         uint                     `json:"entry_id"`
	ReferenceNo     string                   `json:"reference_no"`
	ShopID          uint                     `json:"shop_id"`
	AccountType     models.LedgerAccountType `json:"account_type"`
	AccountID       uint                     `json:"account_id"`
	Debit           decimal.Decimal          `json:"debit"`
	Credit          decimal.Decimal          `json:"credit"`
	BalanceAfter    decimal.Decimal          `json:"balance_after"`
	TransactionType string                   `json:"transaction_type"`
	RecordedAt      time.Time                `json:"recorded_at"`
}

// EmitLedgerEntry - fire-and-forget; hata sadece loglanır
func EmitLedgerEntry(entry *models.LedgerEntry) {
	ev := LedgerEntryRecorded{
		EntryID:         entry.ID,
		ReferenceNo:     entry.ReferenceNo,
		ShopID:          entry.ShopID,
		AccountType:     entry.AccountType,
		AccountID:       entry.AccountID,
		Debit:           entry.Debit,
		Credit:          entry.Credit,
		BalanceAfter:    entry.BalanceAfter,
		TransactionType: entry.TransactionType,
		RecordedAt:      entry.CreatedAt,
	}
	if err := defaultPublisher.Publish(defaultTopic, ev); err != nil {
		config.GetLogger().Warnf("Ledger event yayınlanamadı (entry %d): %v", entry.ID, err)
	}
}
