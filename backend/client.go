package backend

import (
	"context"
	"fmt"

	"ibt_platform/train/corpus"
	"ibt_platform/train/loop"
)

// Client talks to the seq2seq sidecar that hosts the two directional models
// and the shared tokenizer.
type Client struct {
	base BaseClient
}

func New(endpoint, authToken string) *Client {
	return &Client{base: NewBaseClient(endpoint, authToken)}
}

// ModelClient is one directional model on the backend. It satisfies the
// training loop's model contract.
type ModelClient struct {
	base      *BaseClient
	direction string
}

func (c *Client) Model(direction loop.Direction) *ModelClient {
	return &ModelClient{base: &c.base, direction: string(direction)}
}

type trainRequest struct {
	TrainRows []corpus.EncodedExample `json:"train_rows"`
	EvalRows  []corpus.EncodedExample `json:"eval_rows"`
	Epochs    int                     `json:"epochs"`
}

func (m *ModelClient) Train(ctx context.Context, train, eval *corpus.Encoded, epochs int) (loop.TrainStats, error) {
	req := trainRequest{
		TrainRows: train.Rows(),
		EvalRows:  eval.Rows(),
		Epochs:    epochs,
	}

	var stats loop.TrainStats
	err := m.base.Post(fmt.Sprintf("/model/%v/train", m.direction)).Context(ctx).Json(req).Do(&stats)
	if err != nil {
		return loop.TrainStats{}, fmt.Errorf("train request for direction %v failed: %w", m.direction, err)
	}

	return stats, nil
}

type generateRequest struct {
	Rows      []corpus.EncodedExample `json:"rows"`
	MaxLength int                     `json:"max_length"`
}

type generateResponse struct {
	Sequences [][]int64 `json:"sequences"`
}

func (m *ModelClient) Generate(ctx context.Context, data *corpus.Encoded, maxLength int) ([][]int64, error) {
	req := generateRequest{Rows: data.Rows(), MaxLength: maxLength}

	var res generateResponse
	err := m.base.Post(fmt.Sprintf("/model/%v/generate", m.direction)).Context(ctx).Json(req).Do(&res)
	if err != nil {
		return nil, fmt.Errorf("generate request for direction %v failed: %w", m.direction, err)
	}

	if len(res.Sequences) != data.Len() {
		return nil, fmt.Errorf("backend returned %d sequences for %d rows", len(res.Sequences), data.Len())
	}

	return res.Sequences, nil
}

// TokenizerClient satisfies the tokenize contract over HTTP. The pad id is
// fetched once at construction.
type TokenizerClient struct {
	base  *BaseClient
	padId int32
}

type tokenizerInfo struct {
	PadId int32 `json:"pad_id"`
}

func (c *Client) Tokenizer() (*TokenizerClient, error) {
	var info tokenizerInfo
	if err := c.base.Get("/tokenizer/info").Do(&info); err != nil {
		return nil, fmt.Errorf("error fetching tokenizer info: %w", err)
	}
	return &TokenizerClient{base: &c.base, padId: info.PadId}, nil
}

type encodeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type encodeResponse struct {
	Ids []int32 `json:"ids"`
}

func (t *TokenizerClient) Encode(text string, maxLength int) ([]int32, error) {
	var res encodeResponse
	err := t.base.Post("/tokenizer/encode").Json(encodeRequest{Text: text, MaxLength: maxLength}).Do(&res)
	if err != nil {
		return nil, fmt.Errorf("encode request failed: %w", err)
	}
	return res.Ids, nil
}

type decodeRequest struct {
	Ids         []int32 `json:"ids"`
	SkipSpecial bool    `json:"skip_special"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

func (t *TokenizerClient) Decode(ids []int32, skipSpecial bool) (string, error) {
	var res decodeResponse
	err := t.base.Post("/tokenizer/decode").Json(decodeRequest{Ids: ids, SkipSpecial: skipSpecial}).Do(&res)
	if err != nil {
		return "", fmt.Errorf("decode request failed: %w", err)
	}
	return res.Text, nil
}

func (t *TokenizerClient) PadId() int32 {
	return t.padId
}
