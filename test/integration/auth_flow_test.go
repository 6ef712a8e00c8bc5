// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/xoarena/xoarena/internal/auth"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type captchaBody struct {
	CaptchaID    string    `json:"captcha_id"`
	CaptchaImage string    `json:"captcha_image"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type tokenPairBody struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type playerBody struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// postJSON sends body to path and returns the response with its raw bytes.
func postJSON(path string, body any) (*http.Response, []byte) {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}

	req, err := http.NewRequest(http.MethodPost, env.baseURL+path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	return doRequest(req)
}

// authedRequest sends a request carrying a bearer token.
func authedRequest(method, path, token string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, env.baseURL+path, nil)
	Expect(err).NotTo(HaveOccurred())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(req)
}

func doRequest(req *http.Request) (*http.Response, []byte) {
	resp, err := env.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, raw
}

func decodeBody[T any](raw []byte) T {
	var out T
	Expect(json.Unmarshal(raw, &out)).To(Succeed())
	return out
}

// fetchCaptcha issues a challenge and returns its correlation id.
func fetchCaptcha() string {
	resp, raw := postJSON("/auth/captcha", nil)
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	body := decodeBody[captchaBody](raw)
	Expect(body.CaptchaID).NotTo(BeEmpty())
	return body.CaptchaID
}

// challengeAnswer reads the stored answer for a challenge straight from the
// database. The API never exposes it.
func challengeAnswer(id string) string {
	var answer string
	err := env.pool.QueryRow(context.Background(),
		"SELECT answer FROM challenges WHERE id = $1", id).Scan(&answer)
	Expect(err).NotTo(HaveOccurred())
	return answer
}

// signupPlayer walks a full captcha-gated registration and returns the pair.
func signupPlayer(username, password string) tokenPairBody {
	captchaID := fetchCaptcha()
	resp, raw := postJSON("/auth/signup", map[string]string{
		"username":       username,
		"password":       password,
		"captcha_id":     captchaID,
		"captcha_answer": challengeAnswer(captchaID),
	})
	Expect(resp.StatusCode).To(Equal(http.StatusOK), "signup failed: %s", string(raw))
	return decodeBody[tokenPairBody](raw)
}

// subjectOf extracts the player id from a signed token.
func subjectOf(token string) ulid.ULID {
	claims, err := env.codec.Decode(token)
	Expect(err).NotTo(HaveOccurred())
	return claims.Subject
}

// tamper flips one character near the end of a token.
func tamper(token string) string {
	i := len(token) - 2
	replacement := byte('A')
	if token[i] == 'A' {
		replacement = 'B'
	}
	return token[:i] + string(replacement) + token[i+1:]
}

var _ = Describe("Authentication API", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAuthTables(ctx, env.pool)
	})

	Describe("Captcha issuance", func() {
		It("issues a challenge whose answer stays server-side", func() {
			resp, raw := postJSON("/auth/captcha", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decodeBody[captchaBody](raw)
			_, err := ulid.Parse(body.CaptchaID)
			Expect(err).NotTo(HaveOccurred())
			Expect(body.CaptchaImage).To(HavePrefix("data:image/png;base64,"))
			Expect(body.ExpiresAt).To(BeTemporally(">", time.Now()))

			// The answer exists in storage but never crossed the wire
			answer := challengeAnswer(body.CaptchaID)
			Expect(answer).NotTo(BeEmpty())
			Expect(string(raw)).NotTo(ContainSubstring(answer))
		})
	})

	Describe("Signup", func() {
		It("registers a new player through the captcha gate", func() {
			pair := signupPlayer("alice", "correct-horse-battery")

			Expect(pair.AccessToken).NotTo(BeEmpty())
			Expect(pair.RefreshToken).NotTo(BeEmpty())
			Expect(pair.RefreshExpiresAt).To(BeTemporally(">", pair.AccessExpiresAt))

			// The stored credential is an argon2id hash, not the password
			var hash string
			err := env.pool.QueryRow(ctx,
				"SELECT password_hash FROM players WHERE username = $1", "alice").Scan(&hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).To(HavePrefix("$argon2id$"))
			Expect(hash).NotTo(ContainSubstring("correct-horse-battery"))
		})

		It("consumes the challenge on successful registration", func() {
			captchaID := fetchCaptcha()
			answer := challengeAnswer(captchaID)

			resp, _ := postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": answer,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			// Replaying the same challenge for another account fails
			resp, raw := postJSON("/auth/signup", map[string]string{
				"username":       "bob",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": answer,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("CHALLENGE_NOT_FOUND"))
		})

		It("keeps the challenge alive after a wrong answer", func() {
			captchaID := fetchCaptcha()
			answer := challengeAnswer(captchaID)

			resp, raw := postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": answer + "x",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("CHALLENGE_ANSWER_MISMATCH"))

			// Same challenge, correct answer, still inside the window
			resp, _ = postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": answer,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a correct answer once the challenge has expired", func() {
			expiredID := ulid.Make()
			_, err := env.pool.Exec(ctx,
				"INSERT INTO challenges (id, answer, expires_at) VALUES ($1, $2, $3)",
				expiredID.String(), "k3n9p", time.Now().Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())

			resp, raw := postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"password":       "correct-horse-battery",
				"captcha_id":     expiredID.String(),
				"captcha_answer": "k3n9p",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("CHALLENGE_NOT_FOUND"))
		})

		It("rejects duplicate usernames regardless of case", func() {
			signupPlayer("Alice", "correct-horse-battery")

			captchaID := fetchCaptcha()
			resp, raw := postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": challengeAnswer(captchaID),
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("AUTH_USERNAME_TAKEN"))
		})
	})

	Describe("Signin", func() {
		It("returns a staggered token pair for valid credentials", func() {
			signupPlayer("alice", "correct-horse-battery")

			resp, raw := postJSON("/auth/signin", map[string]string{
				"username": "alice",
				"password": "correct-horse-battery",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			pair := decodeBody[tokenPairBody](raw)

			accessClaims, err := env.codec.Decode(pair.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(accessClaims.IsRefreshToken()).To(BeFalse())

			refreshClaims, err := env.codec.Decode(pair.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshClaims.IsRefreshToken()).To(BeTrue())

			// The refresh token activates exactly when the access token dies
			Expect(refreshClaims.ActiveAfter).NotTo(BeNil())
			Expect(refreshClaims.ActiveAfter.Equal(accessClaims.ExpiresAt)).To(BeTrue())
			Expect(pair.AccessExpiresAt.Equal(accessClaims.ExpiresAt)).To(BeTrue())
		})

		It("does not reveal whether the username exists", func() {
			signupPlayer("alice", "correct-horse-battery")

			respWrong, rawWrong := postJSON("/auth/signin", map[string]string{
				"username": "alice",
				"password": "not-the-password",
			})
			respUnknown, rawUnknown := postJSON("/auth/signin", map[string]string{
				"username": "nosuchuser",
				"password": "not-the-password",
			})

			Expect(respWrong.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(respUnknown.StatusCode).To(Equal(respWrong.StatusCode))
			Expect(rawUnknown).To(Equal(rawWrong))
			Expect(decodeBody[errorBody](rawWrong).Code).To(Equal("AUTH_INVALID_CREDENTIALS"))
		})
	})

	Describe("Protected routes", func() {
		It("serves the profile for a valid access token", func() {
			captchaID := fetchCaptcha()
			resp, raw := postJSON("/auth/signup", map[string]string{
				"username":       "alice",
				"display_name":   "Alice the Brave",
				"password":       "correct-horse-battery",
				"captcha_id":     captchaID,
				"captcha_answer": challengeAnswer(captchaID),
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			pair := decodeBody[tokenPairBody](raw)

			resp, raw = authedRequest(http.MethodGet, "/auth/me", pair.AccessToken)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			profile := decodeBody[playerBody](raw)
			Expect(profile.Username).To(Equal("alice"))
			Expect(profile.DisplayName).To(Equal("Alice the Brave"))
			Expect(profile.ID).To(Equal(subjectOf(pair.AccessToken).String()))
			Expect(strings.ToLower(string(raw))).NotTo(ContainSubstring("password"))
		})

		It("rejects requests without a bearer token", func() {
			resp, raw := authedRequest(http.MethodGet, "/auth/me", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("UNAUTHORIZED"))
		})

		It("rejects tampered tokens", func() {
			pair := signupPlayer("alice", "correct-horse-battery")

			resp, raw := authedRequest(http.MethodGet, "/auth/me", tamper(pair.AccessToken))
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("TOKEN_INVALID"))
		})
	})

	Describe("Refresh", func() {
		It("rejects the refresh token before its activation instant", func() {
			pair := signupPlayer("alice", "correct-horse-battery")

			resp, raw := authedRequest(http.MethodPost, "/auth/refresh", pair.RefreshToken)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("TOKEN_NOT_ACTIVE"))
		})

		It("rejects an access token on the refresh endpoint", func() {
			pair := signupPlayer("alice", "correct-horse-battery")

			resp, raw := authedRequest(http.MethodPost, "/auth/refresh", pair.AccessToken)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("TOKEN_NOT_REFRESH"))
		})

		It("rotates the pair once the refresh token is active", func() {
			pair := signupPlayer("alice", "correct-horse-battery")
			playerID := subjectOf(pair.AccessToken)

			// Mint a refresh token that is already active
			now := time.Now().Truncate(time.Second)
			claims, err := auth.NewRefreshClaims(playerID, now.Add(-time.Minute), now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			activeRefresh, err := env.codec.Encode(claims)
			Expect(err).NotTo(HaveOccurred())

			resp, raw := authedRequest(http.MethodPost, "/auth/refresh", activeRefresh)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			rotated := decodeBody[tokenPairBody](raw)
			Expect(rotated.AccessToken).NotTo(BeEmpty())
			Expect(rotated.RefreshToken).NotTo(Equal(activeRefresh))

			// The rotated pair carries the same staggered activation
			newRefresh, err := env.codec.Decode(rotated.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(newRefresh.ActiveAfter).NotTo(BeNil())
			Expect(newRefresh.ActiveAfter.Equal(rotated.AccessExpiresAt)).To(BeTrue())

			// And it belongs to the same player
			Expect(subjectOf(rotated.AccessToken)).To(Equal(playerID))
		})

		It("rejects a refresh token for a deleted account", func() {
			pair := signupPlayer("alice", "correct-horse-battery")
			playerID := subjectOf(pair.AccessToken)

			_, err := env.pool.Exec(ctx, "DELETE FROM players WHERE id = $1", playerID.String())
			Expect(err).NotTo(HaveOccurred())

			now := time.Now().Truncate(time.Second)
			claims, err := auth.NewRefreshClaims(playerID, now.Add(-time.Minute), now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			activeRefresh, err := env.codec.Encode(claims)
			Expect(err).NotTo(HaveOccurred())

			resp, raw := authedRequest(http.MethodPost, "/auth/refresh", activeRefresh)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decodeBody[errorBody](raw).Code).To(Equal("PLAYER_NOT_FOUND"))
		})
	})
})
