package models

type AskRequest struct {
	Question string `json:"question"`
}
