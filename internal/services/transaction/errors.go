package transaction

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

const customErrorMarker = "custom program error: 0x"

// describeTxErr renders the chain's transaction error as compact JSON.
func describeTxErr(txErr interface{}) string {
	if s, ok := txErr.(string); ok {
		return s
	}
	raw, err := sonic.MarshalString(txErr)
	if err != nil {
		return "unprintable transaction error"
	}
	return raw
}

// programErrorCode extracts the custom program error from a transaction error
// such as {"InstructionError":[2,{"Custom":6021}]}, falling back to the
// "custom program error: 0x..." log line. -1 when neither is present.
func programErrorCode(txErr interface{}, logs []string) int64 {
	if txErr != nil {
		if raw, err := sonic.Marshal(txErr); err == nil {
			if code := gjson.GetBytes(raw, "InstructionError.1.Custom"); code.Exists() {
				return code.Int()
			}
		}
	}
	for _, line := range logs {
		if code, ok := codeFromText(line); ok {
			return code
		}
	}
	return -1
}

func codeFromText(s string) (int64, bool) {
	i := strings.Index(s, customErrorMarker)
	if i < 0 {
		return 0, false
	}
	hex := s[i+len(customErrorMarker):]
	end := 0
	for end < len(hex) && strings.IndexByte("0123456789abcdefABCDEF", hex[end]) >= 0 {
		end++
	}
	code, err := strconv.ParseInt(hex[:end], 16, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// anchorMessage returns the "Error Message: ..." text an Anchor program logs on failure.
func anchorMessage(logs []string) string {
	const marker = "Error Message: "
	for _, line := range logs {
		if i := strings.Index(line, marker); i >= 0 {
			return strings.TrimSuffix(line[i+len(marker):], ".")
		}
	}
	return ""
}

// sendFailure classifies a send error by the node's message.
type sendFailure uint8

const (
	sendFatal sendFailure = iota
	// sendBlockhashExpired: the node never accepted the transaction; re-sign and resend.
	sendBlockhashExpired
	// sendBusy: the node refused the request; resending the same signed bytes is idempotent.
	sendBusy
	// sendPreflight: the node's own simulation rejected the transaction.
	sendPreflight
)

func classifySend(err error) sendFailure {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blockhash not found"), strings.Contains(msg, "blockhashnotfound"):
		return sendBlockhashExpired
	case strings.Contains(msg, "transaction simulation failed"):
		return sendPreflight
	case strings.Contains(msg, "too many requests"), strings.Contains(msg, "429"),
		strings.Contains(msg, "node is behind"), strings.Contains(msg, "node is unhealthy"):
		return sendBusy
	}
	return sendFatal
}
