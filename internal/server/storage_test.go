package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/filestore"
)

func storeArtifact(t *testing.T, router *gin.Engine, content, mediaType, sourceHID, purpose string) cas.Info {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/artifacts", gin.H{
		"content":         base64.StdEncoding.EncodeToString([]byte(content)),
		"media_type":      mediaType,
		"source_task_hid": sourceHID,
		"purpose":         purpose,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("store artifact: status %d, body %s", w.Code, w.Body.String())
	}
	var info cas.Info
	decode(t, w, &info)
	return info
}

func TestStoreArtifactEndpoint(t *testing.T) {
	router := testRouter(t)
	req := createRequirement(t, router, "artifact writer")

	info := storeArtifact(t, router, "design notes", "text/markdown", req.HierarchicalID, "spec")
	if info.SHA256 == "" || info.MediaType != "text/markdown" {
		t.Errorf("info = %+v", info)
	}

	w := doJSON(t, router, http.MethodGet, "/artifacts/"+info.SHA256, nil)
	if w.Code != http.StatusOK || w.Body.String() != "design notes" {
		t.Errorf("round trip: status %d, body %q", w.Code, w.Body.String())
	}

	// Same content again is idempotent.
	again := storeArtifact(t, router, "design notes", "text/markdown", req.HierarchicalID, "spec")
	if again.SHA256 != info.SHA256 {
		t.Errorf("duplicate store hash = %q, want %q", again.SHA256, info.SHA256)
	}

	w = doJSON(t, router, http.MethodPost, "/artifacts", gin.H{"content": "not-base64!!"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad base64: status %d, want 400", w.Code)
	}
}

func TestLinkAndDeleteArtifactEndpoints(t *testing.T) {
	router := testRouter(t)
	req := createRequirement(t, router, "link target")

	info := storeArtifact(t, router, "spec body", "text/markdown", req.HierarchicalID, "spec")

	w := doJSON(t, router, http.MethodPost, "/artifacts/"+info.SHA256+"/link", gin.H{
		"task_hid": req.HierarchicalID,
		"role":     "spec",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("link: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/tasks/%d/artifacts?role=spec", req.ID), nil)
	var linked []cas.Info
	decode(t, w, &linked)
	if len(linked) != 1 || linked[0].SHA256 != info.SHA256 {
		t.Fatalf("linked = %+v", linked)
	}

	w = doJSON(t, router, http.MethodPost, "/artifacts/0000/link", gin.H{
		"task_hid": req.HierarchicalID,
		"role":     "spec",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("link unknown hash: status %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/artifacts/"+info.SHA256, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/artifacts/"+info.SHA256+"/info", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("info after delete: status %d, want 404", w.Code)
	}
}

func TestSummaryEndpoints(t *testing.T) {
	router := testRouter(t)
	req := createRequirement(t, router, "summarized work")

	w := doJSON(t, router, http.MethodPost, "/summaries", gin.H{
		"task_hid":    req.HierarchicalID,
		"summary_140": "implements the login flow",
		"acceptance":  []string{"token endpoint responds"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/summaries/"+req.HierarchicalID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	var got struct {
		TaskHID    string   `json:"task_hid"`
		Summary140 string   `json:"summary_140"`
		Acceptance []string `json:"acceptance"`
	}
	decode(t, w, &got)
	if got.Summary140 != "implements the login flow" || len(got.Acceptance) != 1 {
		t.Errorf("summary = %+v", got)
	}

	w = doJSON(t, router, http.MethodPost, "/summaries", gin.H{
		"task_hid":    "REQ-999",
		"summary_140": "phantom",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown task: status %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/summaries", gin.H{
		"task_hid":    req.HierarchicalID,
		"summary_140": strings.Repeat("x", 141),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("overlong summary: status %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/summaries/REQ-999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing summary: status %d, want 404", w.Code)
	}
}

func TestOutlineCardEndpoint(t *testing.T) {
	router := testRouter(t)
	req := createRequirement(t, router, "card source")

	doJSON(t, router, http.MethodPost, "/summaries", gin.H{
		"task_hid":    req.HierarchicalID,
		"summary_140": "short capsule",
		"acceptance":  []string{"compiles"},
	})
	info := storeArtifact(t, router, "# spec", "text/markdown", req.HierarchicalID, "spec")
	doJSON(t, router, http.MethodPost, "/artifacts/"+info.SHA256+"/link", gin.H{
		"task_hid": req.HierarchicalID,
		"role":     "spec",
	})

	w := doJSON(t, router, http.MethodGet, "/summaries/"+req.HierarchicalID+"/outline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("outline: status %d, body %s", w.Code, w.Body.String())
	}
	var card struct {
		HierarchicalID string            `json:"hierarchical_id"`
		Title          string            `json:"title"`
		Summary        string            `json:"summary"`
		Acceptance     []string          `json:"acceptance"`
		URIs           map[string]string `json:"uris"`
	}
	decode(t, w, &card)
	if card.Title != "card source" || card.Summary != "short capsule" {
		t.Errorf("card = %+v", card)
	}
	if !strings.HasPrefix(card.URIs["spec"], "cas://sha256/") {
		t.Errorf("spec uri = %q", card.URIs["spec"])
	}

	w = doJSON(t, router, http.MethodGet, "/summaries/REQ-999/outline", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("outline unknown task: status %d, want 404", w.Code)
	}
}

func TestStorageStatusEndpoint(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/storage/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var status struct {
		CASRoot        string `json:"cas_root"`
		GitRepoPath    string `json:"git_repo_path"`
		GitInitialized bool   `json:"git_initialized"`
		FileCount      int    `json:"file_count"`
	}
	decode(t, w, &status)
	if status.CASRoot == "" || status.GitRepoPath == "" {
		t.Errorf("status = %+v", status)
	}
	if status.GitInitialized {
		t.Error("fresh repo reported as initialized")
	}
	if status.FileCount != 0 {
		t.Errorf("file count = %d, want 0", status.FileCount)
	}
}

func TestCASPathEndpoint(t *testing.T) {
	router := testRouter(t)
	req := createRequirement(t, router, "path lookup")
	info := storeArtifact(t, router, "blob", "text/plain", req.HierarchicalID, "context")

	w := doJSON(t, router, http.MethodGet, "/storage/cas/"+info.SHA256+"/path", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["cas_path"] == "" || !strings.HasPrefix(resp["cas_uri"], "cas://sha256/") {
		t.Errorf("resp = %v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/storage/cas/ffff/path", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown hash: status %d, want 404", w.Code)
	}
}

func TestGitFileEndpoints(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/storage/git/REQ-001/path", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("path: status %d", w.Code)
	}
	var pathResp map[string]string
	decode(t, w, &pathResp)
	if !strings.HasSuffix(pathResp["path"], "requirements/REQ-001") {
		t.Errorf("path = %q", pathResp["path"])
	}

	w = doJSON(t, router, http.MethodGet, "/storage/git/REQ-001.TSK-001.SUB-001.X-001/path", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("deep id: status %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/storage/git/REQ-001/spec", gin.H{"content": "# Requirement"})
	if w.Code != http.StatusOK {
		t.Fatalf("write spec: status %d, body %s", w.Code, w.Body.String())
	}
	var specResp map[string]string
	decode(t, w, &specResp)
	if specResp["uri"] != "git://requirements/REQ-001/requirement.md" {
		t.Errorf("spec uri = %q", specResp["uri"])
	}

	w = doJSON(t, router, http.MethodGet, "/storage/git/REQ-001/spec", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read spec: status %d", w.Code)
	}
	decode(t, w, &specResp)
	if specResp["content"] != "# Requirement" {
		t.Errorf("spec content = %q", specResp["content"])
	}

	w = doJSON(t, router, http.MethodPost, "/storage/git/REQ-001/outline", gin.H{"title": "auth", "order": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("write outline: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/storage/git/REQ-001/outline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read outline: status %d", w.Code)
	}
	var outline map[string]interface{}
	decode(t, w, &outline)
	if outline["title"] != "auth" {
		t.Errorf("outline = %v", outline)
	}

	w = doJSON(t, router, http.MethodGet, "/storage/git/REQ-001/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("files: status %d", w.Code)
	}
	var listed []filestore.File
	decode(t, w, &listed)
	if len(listed) != 2 {
		t.Fatalf("files = %d, want 2", len(listed))
	}

	w = doJSON(t, router, http.MethodGet, "/storage/git/REQ-999/spec", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing spec: status %d, want 404", w.Code)
	}
}
