package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_Totals(t *testing.T) {
	cart := Lines{
		{ProductID: "p1", UnitPrice: 10, Quantity: 2},
		{ProductID: "p2", UnitPrice: 25, Quantity: 3},
	}

	assert.Equal(t, int64(95), cart.Total())
	assert.Equal(t, 5, cart.Count())
}

func TestLines_EmptyTotals(t *testing.T) {
	var cart Lines
	assert.Equal(t, int64(0), cart.Total())
	assert.Equal(t, 0, cart.Count())
}

func TestLines_FindIndex_GroupPartitionsIdentity(t *testing.T) {
	cart := Lines{
		{ProductID: "food", GroupID: "rex", Quantity: 1},
		{ProductID: "food", GroupID: "luna", Quantity: 4},
		{ProductID: "food", Quantity: 2},
	}

	assert.Equal(t, 0, cart.FindIndex("food", "rex"))
	assert.Equal(t, 1, cart.FindIndex("food", "luna"))
	assert.Equal(t, 2, cart.FindIndex("food", ""))
	assert.Equal(t, -1, cart.FindIndex("food", "milo"))
	assert.Equal(t, -1, cart.FindIndex("toy", "rex"))
}

func TestLines_Clone_Independent(t *testing.T) {
	cart := Lines{{ProductID: "p1", Quantity: 1}}
	clone := cart.Clone()
	clone[0].Quantity = 9

	assert.Equal(t, 1, cart[0].Quantity)
}

func TestLines_Clone_Nil(t *testing.T) {
	var cart Lines
	assert.Nil(t, cart.Clone())
}

func TestLines_GroupQuantityValue(t *testing.T) {
	cart := Lines{
		{ProductID: "food", GroupID: "rex", UnitPrice: 10, Quantity: 2},
		{ProductID: "toy", GroupID: "rex", UnitPrice: 5, Quantity: 1},
		{ProductID: "food", GroupID: "luna", UnitPrice: 10, Quantity: 3},
	}

	qty, value := cart.GroupQuantityValue("rex")
	assert.Equal(t, 3, qty)
	assert.Equal(t, int64(25), value)
}

func TestLines_WithoutGroup(t *testing.T) {
	cart := Lines{
		{ProductID: "food", GroupID: "rex"},
		{ProductID: "toy"},
		{ProductID: "leash", GroupID: "rex"},
	}

	rest := cart.WithoutGroup("rex")
	require.Len(t, rest, 1)
	assert.Equal(t, "toy", rest[0].ProductID)
}

func TestCartLine_Bounded(t *testing.T) {
	assert.False(t, CartLine{}.Bounded())
	assert.True(t, CartLine{MaxQuantity: 3}.Bounded())
}
