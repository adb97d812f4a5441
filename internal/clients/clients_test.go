package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHyperliquidClient_InvalidKey(t *testing.T) {
	_, err := NewHyperliquidClient("0xnothex", "")
	assert.Error(t, err)
}

func TestPublicClients(t *testing.T) {
	assert.NotNil(t, NewBinanceClient("", ""))
	assert.NotNil(t, NewBybitClient("", ""))
	assert.NotNil(t, NewBybitClient("key", "secret"))
}
