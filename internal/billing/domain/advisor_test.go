package domain

import (
	"testing"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdvisor() *Advisor {
	catalog := DefaultCatalog()
	return NewAdvisor(catalog, NewCalculator(catalog))
}

func TestAdvisor_Suggest(t *testing.T) {
	tests := []struct {
		name     string
		usage    Usage
		tier     Tier
		reason   SuggestionReason
		savings  int64
		suggests bool
	}{
		{
			name:  "free below every threshold",
			usage: Usage{Tier: TierFree, MonthlyBookings: 2, MonthlySpending: 19999, SupportTickets: 1},
		},
		{
			// FREE pays 40000. PLUS pays 40000-6000-10000 = 24000, saving 16000
			// against a 19900 fee.
			name:  "free spending qualifies but fee outweighs savings",
			usage: Usage{Tier: TierFree, MonthlySpending: 40000},
		},
		{
			// FREE pays 100000. PLUS pays 100000-15000-10000 = 75000; the
			// 25000 saving beats the 19900 fee by 5100.
			name:     "free to plus on cost",
			usage:    Usage{Tier: TierFree, MonthlyBookings: 5, MonthlySpending: 100000},
			tier:     TierPlus,
			reason:   ReasonCost,
			savings:  5100,
			suggests: true,
		},
		{
			name:     "free to plus on support tickets",
			usage:    Usage{Tier: TierFree, SupportTickets: 2},
			tier:     TierPlus,
			reason:   ReasonSupport,
			suggests: true,
		},
		{
			// PLUS pays 200000-30000-10000 = 160000. PRO pays
			// 200000-50000-25000 = 125000; 35000 beats the 30000 fee gap.
			name:     "plus to pro on cost",
			usage:    Usage{Tier: TierPlus, MonthlySpending: 200000},
			tier:     TierPro,
			reason:   ReasonCost,
			savings:  5000,
			suggests: true,
		},
		{
			name:  "plus bookings qualify but no savings and few tickets",
			usage: Usage{Tier: TierPlus, MonthlyBookings: 8, MonthlySpending: 10000, SupportTickets: 3},
		},
		{
			name:     "plus to pro on support tickets",
			usage:    Usage{Tier: TierPlus, SupportTickets: 4},
			tier:     TierPro,
			reason:   ReasonSupport,
			suggests: true,
		},
		{
			name:  "pro is terminal",
			usage: Usage{Tier: TierPro, MonthlyBookings: 50, MonthlySpending: 10_000_000, SupportTickets: 20},
		},
	}

	advisor := newTestAdvisor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := advisor.Suggest(tt.usage)
			require.NoError(t, err)
			if !tt.suggests {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.Equal(t, tt.usage.Tier, s.CurrentTier)
			assert.Equal(t, tt.tier, s.SuggestedTier)
			assert.Equal(t, tt.reason, s.Reason)
			assert.Equal(t, tt.savings, s.EstimatedSavings)
			assert.NotEmpty(t, s.Justification)
		})
	}
}

func TestAdvisor_RejectsInvalidUsage(t *testing.T) {
	advisor := newTestAdvisor()

	_, err := advisor.Suggest(Usage{Tier: "GOLD"})
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = advisor.Suggest(Usage{Tier: TierFree, MonthlySpending: -1})
	assert.ErrorIs(t, err, sharedDomain.ErrNegativeAmount)
}

func TestAdvisor_ReportsTheFirstNegativeField(t *testing.T) {
	advisor := newTestAdvisor()
	usage := Usage{Tier: TierPlus, MonthlyBookings: -2, MonthlySpending: -3, SupportTickets: -4}

	for i := 0; i < 20; i++ {
		_, err := advisor.Suggest(usage)
		require.ErrorIs(t, err, sharedDomain.ErrNegativeAmount)

		var domainErr *sharedDomain.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, map[string]int64{"monthly_bookings": -2}, domainErr.Details)
		assert.Contains(t, domainErr.Message, "monthly_bookings")
	}

	_, err := advisor.Suggest(Usage{Tier: TierPlus, MonthlySpending: -3, SupportTickets: -4})
	var domainErr *sharedDomain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]int64{"monthly_spending": -3}, domainErr.Details)
}
