package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"pixpack/models"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-at-least-32-bytes-long")

func TestJWTRoundTrip(t *testing.T) {
	claims := &models.PixpackJWT{
		Issuer:    "pixpack-api",
		Subject:   "tenant-1",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Job: models.JobSpec{
			Rules:       models.Rules{MaxBytes: 200000},
			Destination: models.Destination{Type: "s3", StorageKey: "abc"},
		},
	}

	token, err := CreateJWT(claims, testSecret)
	if err != nil {
		t.Fatalf("CreateJWT failed: %v", err)
	}

	got, err := VerifyJWT(token, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "pixpack-api"})
	if err != nil {
		t.Fatalf("VerifyJWT failed: %v", err)
	}
	if got.Subject != "tenant-1" || got.Job.Rules.MaxBytes != 200000 || got.Job.Destination.StorageKey != "abc" {
		t.Errorf("Claims did not survive signing: %+v", got)
	}
}

func TestVerifyJWTRejects(t *testing.T) {
	expired := &models.PixpackJWT{Issuer: "x", ExpiresAt: time.Now().Add(-time.Hour).Unix()}
	token, err := CreateJWT(expired, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyJWT(token, VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	valid, _ := CreateJWT(&models.PixpackJWT{Issuer: "x"}, testSecret)
	if _, err := VerifyJWT(valid, VerifyConfig{SecretKey: []byte("another-secret-key-that-is-32-bytes-long!")}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
	if _, err := VerifyJWT(valid, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "y"}); !errors.Is(err, ErrInvalidIssuer) {
		t.Errorf("Expected ErrInvalidIssuer, got %v", err)
	}
	if _, err := VerifyJWT("", VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
	if _, err := CreateJWT(&models.PixpackJWT{}, nil); err == nil {
		t.Error("Expected error for empty secret")
	}
}

func TestVerifyJWTTimeWindow(t *testing.T) {
	future, _ := CreateJWT(&models.PixpackJWT{IssuedAt: time.Now().Add(time.Hour).Unix()}, testSecret)
	if _, err := VerifyJWT(future, VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrTokenNotYetValid) {
		t.Errorf("Expected ErrTokenNotYetValid, got %v", err)
	}
	if _, err := VerifyJWT(future, VerifyConfig{SecretKey: testSecret, ClockSkew: 2 * time.Hour}); err != nil {
		t.Errorf("Clock skew should cover the issue time: %v", err)
	}

	justExpired, _ := CreateJWT(&models.PixpackJWT{ExpiresAt: time.Now().Add(-30 * time.Second).Unix()}, testSecret)
	if _, err := VerifyJWT(justExpired, VerifyConfig{SecretKey: testSecret, ClockSkew: time.Minute}); err != nil {
		t.Errorf("Clock skew should cover a recent expiry: %v", err)
	}

	if _, err := VerifyJWT(future, VerifyConfig{}); !errors.Is(err, ErrNoVerifyKey) {
		t.Errorf("Expected ErrNoVerifyKey, got %v", err)
	}
}

func TestGenerators(t *testing.T) {
	for _, n := range []int{1, 8, 32} {
		rns, err := GenerateRNS(n)
		if err != nil || len(rns) != n {
			t.Errorf("GenerateRNS(%d) = %q, %v", n, rns, err)
		}
		for _, c := range rns {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Errorf("GenerateRNS(%d) produced %q", n, c)
			}
		}
	}
	if _, err := GenerateRNS(0); err == nil {
		t.Error("Expected error for zero length")
	}

	a, _ := GenerateRNS(16)
	b, _ := GenerateRNS(16)
	if a == b {
		t.Errorf("Two suffixes collided: %q", a)
	}

	hex, err := GenerateRandomHex(8)
	if err != nil || len(hex) != 16 {
		t.Errorf("GenerateRandomHex = %q, %v", hex, err)
	}
}
