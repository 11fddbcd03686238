//go:build !integration

package apiv1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
	"universal-loyalty-ledger/internal/onboarding"

	"github.com/rs/zerolog"
)

// Function-field fakes so each test overrides only what it touches.
type fakePartnerUC struct {
	registerFn func(ctx context.Context, name, tmpl string) (*model.Partner, string, error)
	validateFn func(ctx context.Context, partnerID, credential string) bool
	findFn     func(ctx context.Context, partnerID string) (*model.Partner, error)
}

func (f *fakePartnerUC) Register(ctx context.Context, name, tmpl string) (*model.Partner, string, error) {
	return f.registerFn(ctx, name, tmpl)
}

func (f *fakePartnerUC) FindByID(ctx context.Context, partnerID string) (*model.Partner, error) {
	if f.findFn == nil {
		return nil, domain.ErrPartnerNotFound
	}
	return f.findFn(ctx, partnerID)
}

func (f *fakePartnerUC) ValidateCredential(ctx context.Context, partnerID, credential string) bool {
	if f.validateFn == nil {
		return false
	}
	return f.validateFn(ctx, partnerID, credential)
}

func (f *fakePartnerUC) Deactivate(context.Context, string) error { return nil }

func (f *fakePartnerUC) UpdateDeepLinkTemplate(context.Context, string, string) error { return nil }

func (f *fakePartnerUC) List(context.Context) ([]*model.Partner, error) { return nil, nil }

type fakeIdentityUC struct {
	onboardFn func(ctx context.Context, partnerID, externalID, name, email string) (*model.Customer, error)
	findFn    func(ctx context.Context, partnerID, externalID string) (*model.Customer, error)
}

func (f *fakeIdentityUC) Onboard(ctx context.Context, partnerID, externalID, name, email string) (*model.Customer, error) {
	return f.onboardFn(ctx, partnerID, externalID, name, email)
}

func (f *fakeIdentityUC) FindByExternalID(ctx context.Context, partnerID, externalID string) (*model.Customer, error) {
	if f.findFn == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return f.findFn(ctx, partnerID, externalID)
}

func (f *fakeIdentityUC) FindByUniversalID(context.Context, string) (*model.Customer, error) {
	return nil, domain.ErrCustomerNotFound
}

func (f *fakeIdentityUC) Exists(context.Context, string, string) (bool, error) { return false, nil }

func (f *fakeIdentityUC) OnboardTx(ctx context.Context, _ repository.Tx, partnerID, externalID, name, email string) (*model.Customer, error) {
	return f.onboardFn(ctx, partnerID, externalID, name, email)
}

type fakeLedgerUC struct {
	awardFn  func(ctx context.Context, partnerID, externalID string, points int64, md map[string]string) (*model.PointsTransaction, int64, error)
	redeemFn func(ctx context.Context, partnerID, externalID string, points int64, purpose string, md map[string]string) (*model.PointsTransaction, int64, error)
}

func (f *fakeLedgerUC) Award(ctx context.Context, partnerID, externalID string, points int64, md map[string]string) (*model.PointsTransaction, int64, error) {
	return f.awardFn(ctx, partnerID, externalID, points, md)
}

func (f *fakeLedgerUC) Redeem(ctx context.Context, partnerID, externalID string, points int64, purpose string, md map[string]string) (*model.PointsTransaction, int64, error) {
	return f.redeemFn(ctx, partnerID, externalID, points, purpose, md)
}

func (f *fakeLedgerUC) GetBalance(context.Context, string, string) (int64, error) { return 0, nil }

func (f *fakeLedgerUC) History(context.Context, string, string, int) ([]*model.PointsTransaction, error) {
	return nil, nil
}

type fakeShadowUC struct {
	validateFn func(ctx context.Context, code string) (*model.ShadowAccount, error)
	activateFn func(ctx context.Context, code, walletRef, email string) (*model.Customer, int64, error)
}

func (f *fakeShadowUC) ShadowAward(context.Context, string, string, int64, map[string]string) (*model.ShadowAccount, error) {
	return nil, domain.ErrInvalidArgument
}

func (f *fakeShadowUC) ShadowRedeem(context.Context, string, string, int64, string, map[string]string) (*model.ShadowAccount, error) {
	return nil, domain.ErrInvalidArgument
}

func (f *fakeShadowUC) ValidateClaimCode(ctx context.Context, code string) (*model.ShadowAccount, error) {
	return f.validateFn(ctx, code)
}

func (f *fakeShadowUC) Activate(ctx context.Context, code, walletRef, email string) (*model.Customer, int64, error) {
	return f.activateFn(ctx, code, walletRef, email)
}

func (f *fakeShadowUC) ListShadowAccounts(context.Context, string) ([]*model.ShadowAccount, error) {
	return nil, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func newTestServer(partner *fakePartnerUC, identity *fakeIdentityUC, ledger *fakeLedgerUC, shadow *fakeShadowUC, opts ServerOptions) http.Handler {
	logger := zerolog.Nop()
	if partner == nil {
		partner = &fakePartnerUC{validateFn: func(_ context.Context, id, cred string) bool {
			return id == "p-1" && cred == "llk_secret"
		}}
	}
	if identity == nil {
		identity = &fakeIdentityUC{}
	}
	if ledger == nil {
		ledger = &fakeLedgerUC{}
	}
	if shadow == nil {
		shadow = &fakeShadowUC{}
	}
	gen := onboarding.NewGenerator("join.loyalty.test")
	return NewServer(partner, identity, ledger, shadow, gen, opts, &logger).Router()
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("X-Partner-ID", "p-1")
	req.Header.Set("Authorization", "Bearer llk_secret")
	return req
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestRegisterPartnerReturnsCredentialOnce(t *testing.T) {
	partner := &fakePartnerUC{
		registerFn: func(_ context.Context, name, tmpl string) (*model.Partner, string, error) {
			p, err := model.NewPartner(name, tmpl)
			if err != nil {
				return nil, "", err
			}
			return p, "llk_plaintext", nil
		},
	}
	h := newTestServer(partner, nil, nil, nil, ServerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners", jsonBody(t, map[string]string{"name": "Coffee Chain"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID            string `json:"id"`
		APICredential string `json:"api_credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" || resp.APICredential != "llk_plaintext" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPartnerAuth(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil, ServerOptions{})

	cases := []struct {
		name      string
		partnerID string
		auth      string
	}{
		{"missing headers", "", ""},
		{"missing bearer", "p-1", ""},
		{"malformed auth", "p-1", "llk_secret"},
		{"wrong credential", "p-1", "Bearer nope"},
		{"unknown partner", "p-2", "Bearer llk_secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/points/balance?external_customer_id=c-1", nil)
			if tc.partnerID != "" {
				req.Header.Set("X-Partner-ID", tc.partnerID)
			}
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAwardEndpoint(t *testing.T) {
	ledger := &fakeLedgerUC{
		awardFn: func(_ context.Context, partnerID, externalID string, points int64, _ map[string]string) (*model.PointsTransaction, int64, error) {
			if partnerID != "p-1" {
				t.Fatalf("partner id from auth context = %q", partnerID)
			}
			txn, err := model.NewPointsTransaction("u-1", partnerID, externalID, points, model.TransactionAward, "", nil)
			if err != nil {
				return nil, 0, err
			}
			return txn, points, nil
		},
	}
	h := newTestServer(nil, nil, ledger, nil, ServerOptions{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/points/award", jsonBody(t, pointsRequest{ExternalCustomerID: "c-1", Points: 25})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp pointsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Balance != 25 || resp.Transaction.Points != 25 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRedeemOverdraftMapsTo422(t *testing.T) {
	ledger := &fakeLedgerUC{
		redeemFn: func(context.Context, string, string, int64, string, map[string]string) (*model.PointsTransaction, int64, error) {
			return nil, 0, domain.ErrInsufficientBalance
		},
	}
	h := newTestServer(nil, nil, ledger, nil, ServerOptions{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/points/redeem", jsonBody(t, pointsRequest{ExternalCustomerID: "c-1", Points: 9999, Purpose: "tv"})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestValidateClaimCodeInvalidMapsTo404(t *testing.T) {
	shadow := &fakeShadowUC{
		validateFn: func(context.Context, string) (*model.ShadowAccount, error) {
			return nil, domain.ErrClaimCodeInvalid
		},
	}
	h := newTestServer(nil, nil, nil, shadow, ServerOptions{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/shadow-accounts/validate", jsonBody(t, claimCodeRequest{ClaimCode: "ZZZZ-ZZZZ-ZZZZ-ZZZZ"})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestValidateClaimCodeNamesPartner(t *testing.T) {
	shadow := &fakeShadowUC{
		validateFn: func(_ context.Context, code string) (*model.ShadowAccount, error) {
			if code != "AAAA-BBBB-CCCC-DDDD" {
				t.Fatalf("unexpected code %q", code)
			}
			return model.NewShadowAccount("p-1", "walkin-1", code, 40)
		},
	}
	partner := &fakePartnerUC{
		validateFn: func(_ context.Context, id, cred string) bool {
			return id == "p-1" && cred == "llk_secret"
		},
		findFn: func(_ context.Context, id string) (*model.Partner, error) {
			if id != "p-1" {
				t.Fatalf("looked up partner %q", id)
			}
			return model.NewPartner("Acme Coffee", "")
		},
	}
	h := newTestServer(partner, nil, nil, shadow, ServerOptions{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/shadow-accounts/validate", jsonBody(t, claimCodeRequest{ClaimCode: "AAAA-BBBB-CCCC-DDDD"})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp struct {
		PartnerName   string `json:"partner_name"`
		AccruedPoints int64  `json:"accrued_points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PartnerName != "Acme Coffee" {
		t.Errorf("partner_name = %q, want %q", resp.PartnerName, "Acme Coffee")
	}
	if resp.AccruedPoints != 40 {
		t.Errorf("accrued_points = %d, want 40", resp.AccruedPoints)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("AAAA-BBBB-CCCC-DDDD")) {
		t.Error("claim code echoed back in the response")
	}
}

func TestClaimThrottle(t *testing.T) {
	shadow := &fakeShadowUC{
		validateFn: func(context.Context, string) (*model.ShadowAccount, error) {
			t.Fatal("throttled request reached the use case")
			return nil, nil
		},
	}
	h := newTestServer(nil, nil, nil, shadow, ServerOptions{Limiter: denyLimiter{}, ClaimAttemptsPerMinute: 1})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/shadow-accounts/validate", jsonBody(t, claimCodeRequest{ClaimCode: "AAAA-AAAA-AAAA-AAAA"})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestActivateEndpoint(t *testing.T) {
	shadow := &fakeShadowUC{
		activateFn: func(_ context.Context, code, walletRef, _ string) (*model.Customer, int64, error) {
			if code != "AAAA-BBBB-CCCC-DDDD" || walletRef != "wallet-1" {
				t.Fatalf("unexpected args: %q %q", code, walletRef)
			}
			c, err := model.NewCustomer("p-1", "c-1", "", "")
			if err != nil {
				return nil, 0, err
			}
			c.PointsBalance = 80
			return c, 80, nil
		},
	}
	h := newTestServer(nil, nil, nil, shadow, ServerOptions{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/shadow-accounts/activate", jsonBody(t, claimCodeRequest{ClaimCode: "AAAA-BBBB-CCCC-DDDD", WalletRef: "wallet-1"})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp struct {
		MigratedPoints int64 `json:"migrated_points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.MigratedPoints != 80 {
		t.Fatalf("migrated = %d, want 80", resp.MigratedPoints)
	}
}
