package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHouseRulesEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, (&HouseRules{}).Empty())
	assert.False(t, (&HouseRules{CheckIn: "From 15:00"}).Empty())
	assert.False(t, (&HouseRules{AcceptedCards: []string{"Visa"}}).Empty())
}
