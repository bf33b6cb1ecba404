package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/program"
	qrngtesting "github.com/qrnglabs/qrng/utils/pkg/testing"
)

func testPK(n int) solana.PublicKey {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(n + i)
	}
	return solana.PublicKeyFromBytes(raw)
}

type testServer struct {
	server *Server
	store  *ledger.MemoryStore

	programID      solana.PublicKey
	mint           solana.PublicKey
	requester      solana.PublicKey
	requesterToken solana.PublicKey
	treasuryToken  solana.PublicKey
	configAddr     solana.PublicKey
}

func newTestServer(t *testing.T) *testServer {
	store, err := ledger.NewMemoryStore(ledger.MemoryStoreConfig{Logger: qrngtesting.NewLogger()})
	require.NoError(t, err)

	ts := &testServer{
		store:          store,
		programID:      testPK(90),
		mint:           testPK(50),
		requester:      testPK(2),
		requesterToken: testPK(1),
		treasuryToken:  testPK(3),
	}

	dispatcher, err := program.NewDispatcher(program.DispatcherConfig{
		Logger:    qrngtesting.NewLogger(),
		Clock:     clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		ProgramID: ts.programID,
		Store:     store,
		InitConfig: ledger.Config{
			TreasuryTokenAccount: ts.treasuryToken,
			TokenMint:            ts.mint,
			PricePerRequest:      program.DefaultPricePerRequest,
		},
	})
	require.NoError(t, err)
	ts.configAddr = dispatcher.ConfigAddress()

	ts.server, err = New(Config{
		Logger:     qrngtesting.NewLogger(),
		ListenAddr: "127.0.0.1:0",
		Dispatcher: dispatcher,
		Store:      store,
	})
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) submitRequest(tag uint8, sigN uint64) submitInstructionRequest {
	var sig [64]byte
	binary.LittleEndian.PutUint64(sig[:8], sigN)
	sig[63] = 0x5a
	var blockhash solana.Hash
	blockhash[0] = 0x42

	return submitInstructionRequest{
		Tag: tag,
		Accounts: []accountMetaRequest{
			{Pubkey: ts.requester.String(), IsSigner: true, IsWritable: true},
			{Pubkey: ts.requesterToken.String(), IsWritable: true},
			{Pubkey: ts.treasuryToken.String(), IsWritable: true},
			{Pubkey: solana.TokenProgramID.String()},
			{Pubkey: ts.configAddr.String()},
			{Pubkey: solana.SysVarClockPubkey.String()},
		},
		Signature:       base58.Encode(sig[:]),
		Slot:            250_000_000,
		RecentBlockhash: blockhash.String(),
	}
}

func (ts *testServer) initRequest() submitInstructionRequest {
	return submitInstructionRequest{
		Tag: uint8(program.TagInitializeProgram),
		Accounts: []accountMetaRequest{
			{Pubkey: testPK(5).String(), IsSigner: true},
			{Pubkey: ts.configAddr.String(), IsWritable: true},
		},
	}
}

// initialize runs INITIALIZE_PROGRAM over HTTP and seeds the token accounts.
func (ts *testServer) initialize(t *testing.T, requesterBalance uint64) {
	rec := ts.do(t, http.MethodPost, "/api/v1/instructions", ts.initRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx := context.Background()
	require.NoError(t, ts.store.CreateTokenAccount(ctx, ledger.TokenAccount{
		Address: ts.requesterToken,
		Mint:    ts.mint,
		Owner:   ts.requester,
		Balance: requesterBalance,
	}))
	require.NoError(t, ts.store.CreateTokenAccount(ctx, ledger.TokenAccount{
		Address: ts.treasuryToken,
		Mint:    ts.mint,
		Owner:   testPK(4),
		Balance: 0,
	}))
}

func (ts *testServer) returnData(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	var resp submitInstructionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, err := base64.StdEncoding.DecodeString(resp.ReturnData)
	require.NoError(t, err)
	return data
}

func TestQRNG_Server_SubmitInstruction(t *testing.T) {
	t.Parallel()

	t.Run("initialize then generate u64", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, program.DefaultPricePerRequest)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions",
			ts.submitRequest(uint8(program.TagGenerateRandomU64), 1))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, ts.returnData(t, rec), 8)

		account, err := ts.store.GetTokenAccount(context.Background(), ts.requesterToken)
		require.NoError(t, err)
		require.Equal(t, uint64(0), account.Balance)
	})

	t.Run("generate boolean returns one byte", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, program.DefaultPricePerRequest)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions",
			ts.submitRequest(uint8(program.TagGenerateRandomBoolean), 2))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		data := ts.returnData(t, rec)
		require.Len(t, data, 1)
		require.LessOrEqual(t, data[0], uint8(1))
	})

	t.Run("insufficient funds is 402", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, program.DefaultPricePerRequest-1)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions",
			ts.submitRequest(uint8(program.TagGenerateRandomU64), 3))
		require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	})

	t.Run("replayed signature is 409", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, 2*program.DefaultPricePerRequest)

		req := ts.submitRequest(uint8(program.TagGenerateRandomU64), 4)
		rec := ts.do(t, http.MethodPost, "/api/v1/instructions", req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodPost, "/api/v1/instructions", req)
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

		account, err := ts.store.GetTokenAccount(context.Background(), ts.requesterToken)
		require.NoError(t, err)
		require.Equal(t, uint64(program.DefaultPricePerRequest), account.Balance)
	})

	t.Run("reinitialization is 409", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, 0)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions", ts.initRequest())
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("generate before initialization is 409", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions",
			ts.submitRequest(uint8(program.TagGenerateRandomU64), 5))
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("unknown tag is 400", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, program.DefaultPricePerRequest)

		rec := ts.do(t, http.MethodPost, "/api/v1/instructions", ts.submitRequest(99, 6))
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("missing signature is 400", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.initialize(t, program.DefaultPricePerRequest)

		req := ts.submitRequest(uint8(program.TagGenerateRandomU64), 7)
		req.Signature = ""
		rec := ts.do(t, http.MethodPost, "/api/v1/instructions", req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("bad pubkey is 400", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		req := ts.submitRequest(uint8(program.TagGenerateRandomU64), 8)
		req.Accounts[0].Pubkey = "not-base58!"
		rec := ts.do(t, http.MethodPost, "/api/v1/instructions", req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions",
			bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func TestQRNG_Server_TokenAccounts(t *testing.T) {
	t.Parallel()

	t.Run("create and fetch", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		address := testPK(30)
		rec := ts.do(t, http.MethodPost, "/api/v1/token-accounts", tokenAccountRequest{
			Address: address.String(),
			Mint:    ts.mint.String(),
			Owner:   ts.requester.String(),
			Balance: 42,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/api/v1/token-accounts/"+address.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp tokenAccountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, address.String(), resp.Address)
		require.Equal(t, ts.mint.String(), resp.Mint)
		require.Equal(t, ts.requester.String(), resp.Owner)
		require.Equal(t, uint64(42), resp.Balance)
	})

	t.Run("omitted address gets a fresh one", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/api/v1/token-accounts", tokenAccountRequest{
			Mint:  ts.mint.String(),
			Owner: ts.requester.String(),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp tokenAccountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Address)

		_, err := solana.PublicKeyFromBase58(resp.Address)
		require.NoError(t, err)
	})

	t.Run("duplicate create is 409", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		req := tokenAccountRequest{
			Address: testPK(31).String(),
			Mint:    ts.mint.String(),
			Owner:   ts.requester.String(),
		}
		rec := ts.do(t, http.MethodPost, "/api/v1/token-accounts", req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodPost, "/api/v1/token-accounts", req)
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("missing account is 404", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodGet, "/api/v1/token-accounts/"+testPK(32).String(), nil)
		require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("bad address is 400", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodGet, "/api/v1/token-accounts/zzz!", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func TestQRNG_Server_Health(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("%s: %s", path, rec.Body.String()))
	}

	rec := ts.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
}
