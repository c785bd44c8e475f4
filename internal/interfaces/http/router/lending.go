package router

import (
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/auth"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by LendingGroups
type Handlers struct {
	Loans       *handler.LoanHandler
	Payments    *handler.PaymentHandler
	Delinquency *handler.DelinquencyHandler
	Sweeps      *handler.SweepHandler
	Reports     *handler.ReportHandler
}

// LendingGroups returns the route groups of the loan engine API
func LendingGroups(h Handlers) []RouteRegistrar {
	loans := NewDomainGroup("loans", "/loans").
		POST("", auth.PermissionLoanDisburse, h.Loans.Disburse).
		GET("", auth.PermissionLoanRead, h.Loans.List).
		GET("/by-number/:number", auth.PermissionLoanRead, h.Loans.GetByNumber).
		GET("/:id", auth.PermissionLoanRead, h.Loans.Get).
		GET("/:id/schedule", auth.PermissionLoanRead, h.Loans.Schedule).
		GET("/:id/transitions", auth.PermissionLoanRead, h.Loans.Transitions).
		POST("/:id/payments", auth.PermissionPaymentPost, h.Payments.Post).
		GET("/:id/payments", auth.PermissionLoanRead, h.Payments.List).
		POST("/:id/recompute", auth.PermissionRecompute, h.Delinquency.Recompute).
		POST("/:id/escalate", auth.PermissionEscalate, h.Delinquency.Escalate).
		POST("/:id/write-off", auth.PermissionWriteOff, h.Delinquency.WriteOff).
		POST("/:id/cure", auth.PermissionCure, h.Delinquency.Cure).
		POST("/:id/legal-case/close", auth.PermissionLegalClose, h.Delinquency.CloseLegalCase)

	sweeps := NewDomainGroup("sweeps", "/sweeps").
		POST("", auth.PermissionSweepRun, h.Sweeps.Run).
		GET("/last", auth.PermissionSweepRun, h.Sweeps.Last)

	reports := NewDomainGroup("reports", "/reports").
		GET("/buckets", auth.PermissionReportRead, h.Reports.BucketDistribution)

	return []RouteRegistrar{loans, sweeps, reports}
}
