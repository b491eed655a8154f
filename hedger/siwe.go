package hedger

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/rest"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SIWE_TIME_LAYOUT renders timestamps the way the solver expects them:
// UTC with millisecond precision and a Z suffix.
const SIWE_TIME_LAYOUT = "2006-01-02T15:04:05.000Z"

// SIWEFields are the values of an EIP-4361 login message.
type SIWEFields struct {
	Domain         string
	Address        common.Address
	Statement      string
	URI            string
	Version        string
	ChainID        *big.Int
	Nonce          string
	IssuedAt       string
	ExpirationTime string
}

// BuildSIWEMessage renders fields in the exact layout the solver verifies.
func BuildSIWEMessage(f SIWEFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", f.Domain)
	fmt.Fprintf(&b, "%s\n\n", f.Address.Hex())
	fmt.Fprintf(&b, "%s\n\n", f.Statement)
	fmt.Fprintf(&b, "URI: %s\n", f.URI)
	fmt.Fprintf(&b, "Version: %s\n", f.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", f.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", f.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", f.IssuedAt)
	fmt.Fprintf(&b, "Expiration Time: %s", f.ExpirationTime)
	return b.String()
}

// FormatTimestamp renders t in SIWE_TIME_LAYOUT.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(SIWE_TIME_LAYOUT)
}

// SignMessage produces a personal_sign (EIP-191) signature over msg with
// the recovery id shifted to 27/28.
func SignMessage(msg string, sign func(hash []byte) ([]byte, error)) (string, error) {
	sig, err := sign(accounts.TextHash([]byte(msg)))
	if err != nil {
		return "", err
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("unexpected signature length %d", len(sig))
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// GetNonce fetches a login nonce for address.
func (c *Client) GetNonce(ctx context.Context, address common.Address) (string, error) {
	op := "hedger.nonce"
	res, err := c.getJSON(ctx, op, "/nonce/"+url.PathEscape(address.Hex()))
	if err != nil {
		return "", err
	}

	nonce := res.Get("nonce")
	if !nonce.Exists() || nonce.String() == "" {
		return "", errs.New(errs.MalformedResponse, op, "missing nonce")
	}
	return nonce.String(), nil
}

// LoginMessage builds the message Login signs for the given nonce and
// issue time.
func (c *Client) LoginMessage(signer common.Address, nonce string, issuedAt time.Time) SIWEFields {
	return SIWEFields{
		Domain:         c.domain,
		Address:        signer,
		Statement:      "msg: " + c.account.Hex(),
		URI:            c.baseURL + "/login",
		Version:        constants.SIWE_VERSION,
		ChainID:        c.chainID,
		Nonce:          nonce,
		IssuedAt:       FormatTimestamp(issuedAt),
		ExpirationTime: FormatTimestamp(issuedAt.Add(c.sessionLifetime)),
	}
}

type loginRequest struct {
	AccountAddress string `json:"account_address"`
	ExpirationTime string `json:"expiration_time"`
	IssuedAt       string `json:"issued_at"`
	Signature      string `json:"signature"`
	Nonce          string `json:"nonce"`
}

// Login signs a SIWE message for the configured account and exchanges it
// for an access token.
func (c *Client) Login(ctx context.Context) (string, error) {
	op := "hedger.login"

	key, ok := c.privateKey.Get()
	if !ok {
		return "", errs.Missing("PRIVATE_KEY")
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.GetNonce(ctx, c.account)
	if err != nil {
		return "", err
	}

	fields := c.LoginMessage(signer, nonce, c.now())
	message := BuildSIWEMessage(fields)
	c.logger.Debug().Str("message", message).Msg("signing login message")

	signature, err := SignMessage(message, func(hash []byte) ([]byte, error) {
		return crypto.Sign(hash, key)
	})
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign: %w", op, err)
	}

	body := loginRequest{
		AccountAddress: c.account.Hex(),
		ExpirationTime: fields.ExpirationTime,
		IssuedAt:       fields.IssuedAt,
		Signature:      signature,
		Nonce:          nonce,
	}

	res, err := c.postJSON(ctx, op, "/login", body,
		rest.WithHeader("Origin", c.origin),
		rest.WithHeader("Referer", c.origin),
	)
	if err != nil {
		return "", err
	}

	token := res.Get("access_token").String()
	if token == "" {
		return "", errs.New(errs.MalformedResponse, op, "no access_token in login response")
	}

	c.logger.Info().
		Str("account", c.account.Hex()).
		Str("expires", fields.ExpirationTime).
		Msg("logged in")
	return token, nil
}
