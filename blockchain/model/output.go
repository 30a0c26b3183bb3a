package model

type Output struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}
