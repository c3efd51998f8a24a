// Package paymentgateway implements the VNPay redirect and IPN signing protocol.
package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Version          = "2.1.0"
	CommandPay       = "pay"
	CurrencyCode     = "VND"
	DefaultLocale    = "vn"
	DefaultOrderType = "other"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"

	ResponseCodeSuccess = "00"

	dateLayout = "20060102150405"
)

// PaymentTTL is how long a generated payment URL stays valid at the gateway.
const PaymentTTL = 15 * time.Minute

var ErrNotConfigured = errors.New("vnpay: merchant code or hash secret is not configured")

// gatewayZone is the timezone the gateway expects for CreateDate/ExpireDate.
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

type Param struct {
	Key   string
	Value string
}

// PaymentRequest carries the merchant side of a checkout.
type PaymentRequest struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	OrderType string
	IPAddr    string
	BankCode  string
	Locale    string
}

type Codec struct {
	cfg Config
	now func() time.Time
}

func NewCodec(cfg Config) *Codec {
	return &Codec{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used for CreateDate and ExpireDate.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) configured() bool {
	return c.cfg.TmnCode != "" && c.cfg.HashSecret != ""
}

// componentUnescaper restores the marks encodeURIComponent leaves literal.
var componentUnescaper = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// encodeComponent matches the gateway's reference signer: encodeURIComponent
// with spaces written as '+'.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// SortParameters percent-encodes keys and values (space as '+') and orders the
// pairs by encoded key.
func SortParameters(params map[string]string) []Param {
	out := make([]Param, 0, len(params))
	for k, v := range params {
		out = append(out, Param{Key: encodeComponent(k), Value: encodeComponent(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CanonicalQuery joins sorted parameters into the string that gets signed.
func CanonicalQuery(params map[string]string) string {
	sorted := SortParameters(params)
	var b strings.Builder
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

func (c *Codec) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns the hex HMAC-SHA512 of the canonical form of params.
func (c *Codec) Sign(params map[string]string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	return c.sign(CanonicalQuery(params)), nil
}

// BuildPaymentURL returns the signed redirect URL for a checkout.
func (c *Codec) BuildPaymentURL(req PaymentRequest) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if req.TxnRef == "" {
		return "", errors.New("vnpay: txn ref is required")
	}
	if req.Amount <= 0 {
		return "", errors.New("vnpay: amount must be positive")
	}

	now := c.now().In(gatewayZone)
	locale := req.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	orderType := req.OrderType
	if orderType == "" {
		orderType = DefaultOrderType
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Locale":     locale,
		"vnp_CurrCode":   CurrencyCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  orderType,
		"vnp_Amount":     strconv.FormatInt(req.Amount*100, 10),
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": now.Format(dateLayout),
		"vnp_ExpireDate": now.Add(PaymentTTL).Format(dateLayout),
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}

	query := CanonicalQuery(params)
	return c.cfg.PayURL + "?" + query + "&" + ParamSecureHash + "=" + c.sign(query), nil
}

// Verify recomputes the signature over every field except the two hash
// fields and compares it with vnp_SecureHash.
func (c *Codec) Verify(params map[string]string) bool {
	if !c.configured() {
		return false
	}
	got := params[ParamSecureHash]
	if got == "" {
		return false
	}

	rest := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		rest[k] = v
	}

	expected := c.sign(CanonicalQuery(rest))
	return hmac.Equal([]byte(expected), []byte(got))
}

// Result is the normalised gateway response. Fields are filled even when
// IsValid is false so that callers can log what arrived.
type Result struct {
	IsValid       bool
	TxnRef        string
	Amount        int64
	ResponseCode  string
	TransactionNo string
	BankCode      string
	PayDate       string
	Message       string
	Raw           map[string]string
}

func (r Result) Succeeded() bool {
	return r.IsValid && r.ResponseCode == ResponseCodeSuccess
}

func (c *Codec) ParseResult(params map[string]string) Result {
	raw := make(map[string]string, len(params))
	for k, v := range params {
		raw[k] = v
	}

	var amount int64
	if v, err := strconv.ParseInt(params["vnp_Amount"], 10, 64); err == nil {
		amount = v / 100
	}

	code := params["vnp_ResponseCode"]
	return Result{
		IsValid:       c.Verify(params),
		TxnRef:        params["vnp_TxnRef"],
		Amount:        amount,
		ResponseCode:  code,
		TransactionNo: params["vnp_TransactionNo"],
		BankCode:      params["vnp_BankCode"],
		PayDate:       params["vnp_PayDate"],
		Message:       ResponseMessage(code),
		Raw:           raw,
	}
}

// FlattenValues keeps the first value of each key.
func FlattenValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
