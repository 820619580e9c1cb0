package main

import (
	"context"
	"flag"
	"time"

	"kuyumcu-backend/internal/cache"
	"kuyumcu-backend/internal/config"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/ledger"
	"kuyumcu-backend/internal/models"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// Defterden bakiyeleri yeniden türetip önbellek kolonlarındaki sapmayı
// düzelten bakım aracı. Cron'dan çalıştırılmak üzere tasarlandı; redis
// varsa dağıtık kilit alır ki aynı anda iki kopya çalışmasın.
func main() {
	shopID := flag.Uint("shop", 0, "sadece bu dükkanı mutabakata al (0 = hepsi)")
	dryRun := flag.Bool("dry-run", false, "sapmaları raporla ama düzeltme")
	flag.Parse()

	cfg := config.Load()
	log := config.GetLogger()

	database.Init(cfg)
	cache.Init(cfg)

	if rdb := cache.Client(); rdb != nil {
		locker := redislock.New(rdb)
		ctx := context.Background()
		lock, err := locker.Obtain(ctx, "lock:balance-reconcile", 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			log.Warn("Başka bir mutabakat çalışıyor, çıkılıyor")
			return
		} else if err != nil {
			log.Fatalf("Kilit alınamadı: %v", err)
		}
		defer lock.Release(ctx)
	}

	var shopIDs []uint
	if *shopID != 0 {
		shopIDs = []uint{*shopID}
	} else {
		if err := database.DB.Model(&models.Shop{}).Pluck("id", &shopIDs).Error; err != nil {
			log.Fatalf("Dükkanlar listelenemedi: %v", err)
		}
	}

	totalCorrected := 0
	for _, id := range shopIDs {
		if *dryRun {
			reports, aerr := reportDrift(id)
			if aerr != nil {
				log.Errorf("Dükkan %d raporlanamadı: %v", id, aerr)
				continue
			}
			for _, r := range reports {
				log.Warnf("Dükkan %d: %s/%d sapma %s (önbellek %s, defter %s)",
					id, r.AccountType, r.AccountID, r.Drift.StringFixed(2),
					r.CachedBalance.StringFixed(2), r.DerivedBalance.StringFixed(2))
			}
			totalCorrected += len(reports)
			continue
		}

		reports, aerr := ledger.ReconcileShop(database.DB, id)
		if aerr != nil {
			log.Errorf("Dükkan %d mutabakatı başarısız: %v", id, aerr)
			continue
		}
		for _, r := range reports {
			log.Warnf("Dükkan %d: %s/%d düzeltildi, sapma %s",
				id, r.AccountType, r.AccountID, r.Drift.StringFixed(2))
		}
		totalCorrected += len(reports)
	}

	if totalCorrected == 0 {
		log.Info("Sapma yok, tüm bakiyeler defterle tutarlı")
	} else {
		log.Infof("Toplam %d hesapta sapma bulundu", totalCorrected)
	}
}

// Düzeltme yapmadan sapmaları listeler.
func reportDrift(shopID uint) ([]ledger.DriftReport, error) {
	var reports []ledger.DriftReport

	check := func(accountType models.LedgerAccountType, model any) error {
		var ids []uint
		if err := database.DB.Model(model).Where("shop_id = ?", shopID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			derived, aerr := ledger.DeriveBalance(database.DB, shopID, accountType, id)
			if aerr != nil {
				return aerr
			}
			cached, cerr := cachedBalance(shopID, accountType, id)
			if cerr != nil {
				return cerr
			}
			if !cached.Equal(derived) {
				reports = append(reports, ledger.DriftReport{
					AccountType:    accountType,
					AccountID:      id,
					CachedBalance:  cached,
					DerivedBalance: derived,
					Drift:          cached.Sub(derived),
				})
			}
		}
		return nil
	}

	if err := check(models.AccountTypeSupplier, &models.Supplier{}); err != nil {
		return nil, err
	}
	if err := check(models.AccountTypeWorkshop, &models.Workshop{}); err != nil {
		return nil, err
	}
	if err := check(models.AccountTypeCustomer, &models.Customer{}); err != nil {
		return nil, err
	}
	if err := check(models.AccountTypeCreditPool, &models.CreditPool{}); err != nil {
		return nil, err
	}
	if err := checkAllocations(shopID, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Bütçe kalemlerinde kalan = tahsis + devir - kullanım; önbellekteki
// remaining_amount ile karşılaştırılır.
func checkAllocations(shopID uint, reports *[]ledger.DriftReport) error {
	var allocs []models.BudgetAllocation
	if err := database.DB.Where("shop_id = ?", shopID).Find(&allocs).Error; err != nil {
		return err
	}
	for _, alloc := range allocs {
		allocated, used, aerr := ledger.DeriveAllocationState(database.DB, shopID, alloc.ID)
		if aerr != nil {
			return aerr
		}
		derived := allocated.Add(alloc.RolloverAmount).Sub(used)
		if !alloc.RemainingAmount.Equal(derived) {
			*reports = append(*reports, ledger.DriftReport{
				AccountType:    models.AccountTypeBudgetAllocation,
				AccountID:      alloc.ID,
				CachedBalance:  alloc.RemainingAmount,
				DerivedBalance: derived,
				Drift:          alloc.RemainingAmount.Sub(derived),
			})
		}
	}
	return nil
}

func cachedBalance(shopID uint, accountType models.LedgerAccountType, accountID uint) (decimal.Decimal, error) {
	q := database.DB.Where("shop_id = ? AND id = ?", shopID, accountID)
	switch accountType {
	case models.AccountTypeSupplier:
		var s models.Supplier
		if err := q.First(&s).Error; err != nil {
			return decimal.Zero, err
		}
		return s.CurrentBalance, nil
	case models.AccountTypeWorkshop:
		var w models.Workshop
		if err := q.First(&w).Error; err != nil {
			return decimal.Zero, err
		}
		return w.CurrentBalance, nil
	case models.AccountTypeCustomer:
		var m models.Customer
		if err := q.First(&m).Error; err != nil {
			return decimal.Zero, err
		}
		return m.CurrentBalance, nil
	case models.AccountTypeCreditPool:
		var p models.CreditPool
		if err := q.First(&p).Error; err != nil {
			return decimal.Zero, err
		}
		return p.CurrentBalance, nil
	}
	return decimal.Zero, nil
}
