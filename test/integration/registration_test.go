//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRegistration_HappyPath(t *testing.T) {
	cfg := LoadCfg()
	MailhogPurge(t, cfg.MailhogAPI)
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.RequestTopic)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	email := fmt.Sprintf("reg-%d@example.com", time.Now().UnixNano())
	body, _ := json.Marshal(map[string]string{"name": "Alice", "email": email})

	resp := HTTPDoJSON(t, http.MethodPost, cfg.RegBaseURL+cfg.RegUsersPath, body, http.StatusCreated)

	var created struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(resp, &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Email != email {
		t.Fatalf("bad response: %s", string(resp))
	}

	if _, ok := FindUserByEmail(t, db, email); !ok {
		t.Fatalf("user row not found")
	}

	// The relay publishes and the notifier delivers; the record finalizes
	// as SENT and the mail lands in Mailhog.
	row := WaitNotificationStatus(t, db, created.ID, "SENT", 30*time.Second)
	if !row.SendDateEmail.Valid {
		t.Fatalf("send_date_email not set")
	}

	rep := WaitMailhogCount(t, cfg.MailhogAPI, 1, 25*time.Second)
	if len(rep.Items) == 0 {
		t.Fatalf("no mail")
	}
	subj := ""
	if v, ok := rep.Items[0].Content.Headers["Subject"]; ok && len(v) > 0 {
		subj = v[0]
	}
	if !strings.Contains(subj, "Registration completed successfully!") {
		t.Fatalf("bad subject: %q", subj)
	}
	if !strings.Contains(rep.Items[0].Content.Body, "Alice, welcome!") {
		t.Fatalf("bad body: %q", rep.Items[0].Content.Body)
	}
}

func TestRegistration_DuplicateEmail_Conflict(t *testing.T) {
	cfg := LoadCfg()

	email := fmt.Sprintf("dup-%d@example.com", time.Now().UnixNano())
	body, _ := json.Marshal(map[string]string{"name": "Bob", "email": email})

	HTTPDoJSON(t, http.MethodPost, cfg.RegBaseURL+cfg.RegUsersPath, body, http.StatusCreated)
	HTTPDoJSON(t, http.MethodPost, cfg.RegBaseURL+cfg.RegUsersPath, body, http.StatusConflict)
}

func TestRegistration_InvalidInput_BadRequest(t *testing.T) {
	cfg := LoadCfg()

	for _, in := range []map[string]string{
		{"name": "", "email": "x@example.com"},
		{"name": "Carol", "email": ""},
		{"name": "Carol", "email": "not-an-email"},
	} {
		body, _ := json.Marshal(in)
		HTTPDoJSON(t, http.MethodPost, cfg.RegBaseURL+cfg.RegUsersPath, body, http.StatusBadRequest)
	}
}
