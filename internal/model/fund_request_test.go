package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFundTransitions(t *testing.T) {
	assert.True(t, CanFundTransitionTo(FundStatusPending, FundStatusApproved))
	assert.True(t, CanFundTransitionTo(FundStatusPending, FundStatusDeclined))

	assert.False(t, CanFundTransitionTo(FundStatusApproved, FundStatusDeclined))
	assert.False(t, CanFundTransitionTo(FundStatusDeclined, FundStatusApproved))
	assert.False(t, CanFundTransitionTo(FundStatusApproved, FundStatusPending))
}

func TestFundCreditAmount(t *testing.T) {
	req := &FundRequest{ClaimedAmount: 45000}
	assert.Equal(t, int64(45000), req.CreditAmount())

	approved := int64(40000)
	req.ApprovedAmount = &approved
	assert.Equal(t, int64(40000), req.CreditAmount())
}
