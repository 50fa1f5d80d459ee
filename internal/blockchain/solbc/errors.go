// internal/blockchain/solbc/errors.go
package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrInvalidResponse возникает при получении некорректного ответа
	ErrInvalidResponse = errors.New("invalid RPC response")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку RPC
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// DescribeError turns an RPC error into a short human readable reason.
// For failed preflight simulations the Anchor error from the program logs
// is preferred because it names the actual failure (slippage, balance).
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err.Error()
	}

	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		if dataMap, ok := rpcErr.Data.(map[string]interface{}); ok {
			if logs, ok := dataMap["logs"].([]interface{}); ok {
				for _, entry := range logs {
					s, ok := entry.(string)
					if ok && strings.Contains(s, "AnchorError occurred") {
						return formatAnchorLog(s)
					}
				}
			}
			if instrErr, ok := dataMap["err"]; ok && instrErr != nil {
				return "simulation failed: " + DescribeStatusError(instrErr)
			}
		}
	}
	return fmt.Sprintf("rpc error %d: %s", rpcErr.Code, rpcErr.Message)
}

// DescribeStatusError formats the err field of a signature status, e.g.
// {"InstructionError":[2,{"Custom":6001}]}.
func DescribeStatusError(statusErr interface{}) string {
	switch v := statusErr.(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// formatAnchorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: TooMuchSolRequired. Error Number: 6002. Error Message: slippage: Too much SOL required to buy the given amount of tokens.."
func formatAnchorLog(logStr string) string {
	var code, number, msg string
	if parts := strings.SplitN(logStr, "Error Code:", 2); len(parts) == 2 {
		code = strings.TrimSpace(strings.SplitN(parts[1], ".", 2)[0])
	}
	if parts := strings.SplitN(logStr, "Error Number:", 2); len(parts) == 2 {
		number = strings.TrimSpace(strings.SplitN(parts[1], ".", 2)[0])
	}
	if parts := strings.SplitN(logStr, "Error Message:", 2); len(parts) == 2 {
		msg = strings.TrimSpace(strings.TrimRight(parts[1], ". "))
	}
	if code == "" {
		return strings.TrimSpace(logStr)
	}
	return fmt.Sprintf("anchor %s (%s): %s", code, number, msg)
}
