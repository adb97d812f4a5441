package sqlstore

// balanceChangeModel is the row layout of a recorded balance change.
// Decimals are kept as strings so no precision is lost.
type balanceChangeModel struct {
	Seq                     int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	ChangeID                string `gorm:"column:change_id;uniqueIndex"`
	ServiceName             string `gorm:"column:service_name"`
	ServiceConfigurationKey string `gorm:"column:service_configuration_key"`
	ExchangeAccountID       string `gorm:"column:exchange_account_id;index:idx_trade_place"`
	CurrencyPair            string `gorm:"column:currency_pair;index:idx_trade_place"`
	CurrencyCode            string `gorm:"column:currency_code"`
	ClientOrderFillID       string `gorm:"column:client_order_fill_id;index"`
	ChangeDateUnixNano      int64  `gorm:"column:change_date;index"`
	BalanceChange           string `gorm:"column:balance_change"`
	UsdBalanceChange        string `gorm:"column:usd_balance_change"`
}

func (balanceChangeModel) TableName() string {
	return "profit_loss_balance_changes"
}
