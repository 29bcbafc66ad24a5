// Package httplog publishes ceremony payloads to a Rekor-compatible
// transparency log over HTTP. The payload hash is signed with the service's
// witness key before submission, so the log entry is attributable.
package httplog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"keryx/internal/domain"
	"keryx/internal/infra/witness"
)

type Signer interface {
	Sign(ctx context.Context, payload []byte) (sig []byte, pubKey []byte, err error)
}

type Client struct {
	baseURL string
	signer  Signer
	httpDo  func(*http.Request) (*http.Response, error)
}

const maxProviderReceiptBytes = 256 * 1024

func NewClient(baseURL string, signer Signer, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httplog base url is required")
	}
	if signer == nil {
		return nil, errors.New("httplog signer is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		httpDo:  doer,
	}, nil
}

func (c *Client) ProviderName() string {
	return "httplog"
}

func (c *Client) Publish(ctx context.Context, payload witness.Payload) domain.WitnessReceipt {
	if c == nil {
		return failedReceipt("httplog", domain.WitnessErrorBadConfig, nil)
	}
	receipt, err := c.publishPayload(ctx, payload)
	if err != nil {
		return failedReceipt(c.ProviderName(), domain.WitnessErrorBadConfig, nil)
	}
	return receipt
}

func (c *Client) publishPayload(ctx context.Context, payload witness.Payload) (domain.WitnessReceipt, error) {
	signature, pubKey, err := c.signer.Sign(ctx, payload.CanonicalJSON)
	if err != nil {
		return domain.WitnessReceipt{}, err
	}

	entry := hashedRekord{
		APIVersion: "0.0.1",
		Kind:       "hashedrekord",
		Spec: hashedRekordSpec{
			Data: hashedRekordData{
				Hash: hashedRekordHash{
					Algorithm: "sha256",
					Value:     payload.HashHex,
				},
			},
			Signature: hashedRekordSignature{
				Content: base64.StdEncoding.EncodeToString(signature),
				PublicKey: hashedRekordPublicKey{
					Content: base64.StdEncoding.EncodeToString(pubKey),
				},
			},
		},
	}

	postBody, err := json.Marshal(entry)
	if err != nil {
		return domain.WitnessReceipt{}, err
	}

	postURL := c.baseURL + "/api/v1/log/entries"
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(postBody))
	if err != nil {
		return domain.WitnessReceipt{}, err
	}
	postReq.Header.Set("Content-Type", "application/json")

	postResp, err := c.httpDo(postReq)
	if err != nil {
		return failedReceipt(c.ProviderName(), errorToCode(ctx, err), nil), nil
	}
	defer postResp.Body.Close()
	postRespBody, err := io.ReadAll(postResp.Body)
	if err != nil {
		return failedReceipt(c.ProviderName(), errorToCode(ctx, err), nil), nil
	}
	if postResp.StatusCode < 200 || postResp.StatusCode >= 300 {
		return failedReceipt(c.ProviderName(), statusToErrorCode(postResp.StatusCode), postRespBody), nil
	}
	uuid := firstMapKey(postRespBody)
	if uuid == "" {
		return failedReceipt(c.ProviderName(), domain.WitnessErrorIO, postRespBody), nil
	}

	receiptJSON, _ := truncateReceiptJSON(postRespBody)
	return domain.WitnessReceipt{
		Provider:            c.ProviderName(),
		Status:              domain.WitnessStatusPublished,
		ContentHash:         payload.HashHex,
		Location:            c.baseURL + "/api/v1/log/entries/" + uuid,
		ProviderReceiptJSON: json.RawMessage(receiptJSON),
	}, nil
}

func failedReceipt(provider, code string, body []byte) domain.WitnessReceipt {
	receipt := domain.WitnessReceipt{
		Provider:  provider,
		Status:    domain.WitnessStatusFailed,
		ErrorCode: code,
	}
	receiptJSON, _ := truncateReceiptJSON(body)
	if len(receiptJSON) > 0 {
		receipt.ProviderReceiptJSON = json.RawMessage(receiptJSON)
	}
	return receipt
}

func statusToErrorCode(code int) string {
	if code == http.StatusTooManyRequests || code >= 500 {
		return domain.WitnessErrorIO
	}
	return domain.WitnessErrorBadConfig
}

func errorToCode(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WitnessErrorTimeout
	}
	return domain.WitnessErrorIO
}

func firstMapKey(payload []byte) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ""
	}
	for key := range raw {
		return key
	}
	return ""
}

func truncateReceiptJSON(payload []byte) ([]byte, bool) {
	size := len(payload)
	if size == 0 {
		return nil, false
	}
	if size <= maxProviderReceiptBytes {
		return payload, false
	}
	prefix := payload[:maxProviderReceiptBytes]
	truncated := map[string]any{
		"truncated":     true,
		"prefix_base64": base64.StdEncoding.EncodeToString(prefix),
	}
	encoded, err := json.Marshal(truncated)
	if err != nil {
		return nil, true
	}
	return encoded, true
}

type hashedRekord struct {
	APIVersion string           `json:"apiVersion"`
	Kind       string           `json:"kind"`
	Spec       hashedRekordSpec `json:"spec"`
}

type hashedRekordSpec struct {
	Data      hashedRekordData      `json:"data"`
	Signature hashedRekordSignature `json:"signature"`
}

type hashedRekordData struct {
	Hash hashedRekordHash `json:"hash"`
}

type hashedRekordHash struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type hashedRekordSignature struct {
	Content   string                `json:"content"`
	PublicKey hashedRekordPublicKey `json:"publicKey"`
}

type hashedRekordPublicKey struct {
	Content string `json:"content"`
}
