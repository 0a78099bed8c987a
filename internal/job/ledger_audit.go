package job

import (
	"context"
	"log"
	"time"

	"boostpanel/internal/repository"

	"gorm.io/gorm"
)

// LedgerAuditJob 周期性对账
//
// 不变式：对任意用户，主余额 + 推荐池余额 == 该用户全部流水的净和。
// 每笔余额变动都和流水同事务落库，正常情况下不可能不一致；
// 这里兜底发现人为改库或历史 bug 造成的账目漂移，只告警不自动修复。
type LedgerAuditJob struct {
	db              *gorm.DB
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	stopCh          chan struct{}
	interval        time.Duration
}

func NewLedgerAuditJob(db *gorm.DB) *LedgerAuditJob {
	return &LedgerAuditJob{
		db:              db,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		stopCh:          make(chan struct{}),
		interval:        5 * time.Minute,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	log.Println("[LedgerAuditJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerAuditJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LedgerAuditJob] 任务停止")
			return
		case <-ticker.C:
			j.auditAll(ctx)
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

func (j *LedgerAuditJob) auditAll(ctx context.Context) {
	wallets, err := j.walletRepo.ListAll(ctx)
	if err != nil {
		log.Printf("[LedgerAuditJob] 查询钱包失败: %v", err)
		return
	}

	mismatches := 0
	for _, wallet := range wallets {
		sum, err := j.transactionRepo.SumByUserUID(ctx, wallet.UserUID)
		if err != nil {
			log.Printf("[LedgerAuditJob] 汇总流水失败: uid=%s, err=%v", wallet.UserUID, err)
			continue
		}

		total := wallet.Balance + wallet.ReferralBalance
		if total != sum {
			mismatches++
			log.Printf("[LedgerAuditJob] 账目不一致: uid=%s, 钱包合计=%d, 流水净和=%d, 差额=%d",
				wallet.UserUID, total, sum, total-sum)
		}
	}

	if mismatches > 0 {
		log.Printf("[LedgerAuditJob] 本轮对账发现 %d 个不一致钱包", mismatches)
	}
}
