package symmio

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/banky/go-symmio/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/maxatome/go-testdeep/helpers/tdsuite"
	"github.com/maxatome/go-testdeep/td"
)

// DiamondIntegrationSuite runs read-only views against a live diamond.
type DiamondIntegrationSuite struct {
	client  *ethclient.Client
	diamond *Diamond
}

func (s *DiamondIntegrationSuite) Setup(t *td.T) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := chain.Dial(ctx, os.Getenv("RPC_URL"))
	if err != nil {
		return err
	}
	d, err := New(Config{
		Address: common.HexToAddress(os.Getenv("DIAMOND_ADDRESS")),
		Backend: client,
	})
	if err != nil {
		return fmt.Errorf("failed to create diamond: %w", err)
	}

	s.client = client
	s.diamond = d
	return nil
}

func (s *DiamondIntegrationSuite) Destroy(t *td.T) error {
	s.client.Close()
	return nil
}

// Skipped unless RPC_URL and DIAMOND_ADDRESS are set, in the environment
// or in ../.env, and SKIP_INTEGRATION is not "true".
func TestDiamondIntegrationSuite(t *testing.T) {
	_ = godotenv.Load("../.env")

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("skipping DiamondIntegrationSuite; SKIP_INTEGRATION=true")
	}
	if os.Getenv("RPC_URL") == "" || !common.IsHexAddress(os.Getenv("DIAMOND_ADDRESS")) {
		t.Skip("skipping DiamondIntegrationSuite; RPC_URL and DIAMOND_ADDRESS are required")
	}

	tdsuite.Run(t, &DiamondIntegrationSuite{})
}

func (s *DiamondIntegrationSuite) TestForceCloseCooldowns(assert, require *td.T) {
	cooldowns, err := s.diamond.ForceCloseCooldowns(context.Background())
	require.CmpNoError(err)
	assert.NotNil(cooldowns.First)
	assert.NotNil(cooldowns.Second)
}

func (s *DiamondIntegrationSuite) TestSymbols(assert, require *td.T) {
	ctx := context.Background()

	symbols, err := s.diamond.GetSymbols(ctx, big.NewInt(0), big.NewInt(5))
	require.CmpNoError(err)
	if len(symbols) == 0 {
		assert.Log("diamond lists no symbols")
		return
	}

	first := symbols[0]
	got, err := s.diamond.GetSymbol(ctx, first.SymbolId)
	require.CmpNoError(err)
	assert.Cmp(got.Name, first.Name)

	names, err := s.diamond.SymbolNameByID(ctx, []*big.Int{first.SymbolId})
	require.CmpNoError(err)
	assert.Cmp(names, []string{first.Name})
}

func (s *DiamondIntegrationSuite) TestInvalidBridgedAmountsPool(assert, require *td.T) {
	_, err := s.diamond.GetInvalidBridgedAmountsPool(context.Background())
	require.CmpNoError(err)
}
