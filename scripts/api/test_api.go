// Minimal end-to-end check against a running aigov API.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
)

var baseURL = getenv("API_URL", "http://localhost:8000/v1")

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type account struct {
	sk    *schnorrkel.SecretKey
	addr  string
	token string
}

func main() {
	log.SetFlags(0)

	alice := login(newAccount())
	bob := login(newAccount())

	id := createProposal(alice)
	vote(alice, id, map[string]any{"support": true})
	savePreference(bob)
	vote(bob, id, map[string]any{"delegate": true})
	checkTally(id, 2)

	fmt.Println("✓ all endpoints passed")
}

func newAccount() *account {
	sk, pk, err := schnorrkel.GenerateKeypair()
	if err != nil {
		log.Fatalf("keypair: %v", err)
	}
	raw := pk.Encode()
	// The API accepts a 0x-prefixed public key as well as SS58.
	return &account{sk: sk, addr: "0x" + hex.EncodeToString(raw[:])}
}

func login(a *account) *account {
	var ch struct{ Nonce string }
	doJSON("POST", "/auth/challenge", "", map[string]any{"address": a.addr, "method": "polkadotjs"}, &ch, http.StatusOK)

	sig, err := a.sk.Sign(schnorrkel.NewSigningContext([]byte("substrate"), []byte(ch.Nonce)))
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	raw := sig.Encode()

	var v struct{ Token string }
	doJSON("POST", "/auth/verify", "", map[string]any{
		"address":   a.addr,
		"method":    "polkadotjs",
		"signature": "0x" + hex.EncodeToString(raw[:]),
	}, &v, http.StatusOK)
	a.token = v.Token
	fmt.Println("✓ login", a.addr[:10])
	return a
}

func createProposal(a *account) uint64 {
	var p struct{ ID uint64 }
	doJSON("POST", "/proposals", a.token, map[string]any{
		"title":       "Smoke test grant",
		"description": "Fund a small community grant with a spending cap",
		"category":    "Finance",
		"riskScore":   3,
	}, &p, http.StatusCreated)
	fmt.Println("✓ proposal", p.ID)
	return p.ID
}

func vote(a *account, id uint64, body map[string]any) {
	doJSON("POST", fmt.Sprintf("/proposals/%d/votes", id), a.token, body, nil, http.StatusCreated)
	fmt.Println("✓ vote", a.addr[:10])
}

func savePreference(a *account) {
	doJSON("PUT", "/delegates/me", a.token, map[string]any{
		"active":          true,
		"riskTolerance":   5,
		"votingStrategy":  "balanced",
		"categoryWeights": map[string]int{"Finance": 4},
	}, nil, http.StatusOK)
	fmt.Println("✓ delegate preference")
}

func checkTally(id uint64, want int) {
	var t struct{ For, Against int }
	doJSON("GET", fmt.Sprintf("/proposals/%d/tally", id), "", nil, &t, http.StatusOK)
	if t.For+t.Against != want {
		log.Fatalf("tally: got %d votes, want %d", t.For+t.Against, want)
	}
	fmt.Printf("✓ tally %d for / %d against\n", t.For, t.Against)
}

func doJSON(method, path, token string, body, out any, want int) {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, baseURL+path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		log.Fatalf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
