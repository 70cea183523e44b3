package webui

import (
	"bytes"
	"encoding/binary"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/tormoder/fit"
)

func encodeActivity(t *testing.T) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(time.Duration(i) * time.Second)
		record.Distance = uint32(i * 300)
		record.Speed = 3000
		record.HeartRate = uint8(140 + i%5)
		activity.Records = append(activity.Records, record)
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, fileData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if fileData != nil {
		part, err := writer.CreateFormFile("file", "activity.fit")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(fileData); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestLandingPage(t *testing.T) {
	srv := NewServer()
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<form") {
		t.Fatal("landing page should contain the upload form")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer()
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "healthy") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestUploadWithoutFileRejected(t *testing.T) {
	srv := NewServer()
	body, contentType := multipartUpload(t, nil, map[string]string{"smooth_speed": "on"})

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestUploadRejectsInvalidFile(t *testing.T) {
	srv := NewServer()
	body, contentType := multipartUpload(t, []byte("not a fit file"), nil)

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid FIT file") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

var downloadLinkPattern = regexp.MustCompile(`href="(/download/[^"]+)"`)

func TestUploadProcessAndDownload(t *testing.T) {
	srv := NewServer()
	original := encodeActivity(t)
	body, contentType := multipartUpload(t, original, map[string]string{
		"remove_speed_fields": "on",
	})

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	page := rr.Body.String()
	if !strings.Contains(page, "Download processed FIT") {
		t.Fatal("results page missing the download link")
	}
	if strings.Contains(page, "<strong>speed</strong>") {
		t.Fatal("results table should not list removed speed fields")
	}

	match := downloadLinkPattern.FindStringSubmatch(page)
	if match == nil {
		t.Fatal("no download URL in results page")
	}

	dlReq := httptest.NewRequest("GET", match[1], nil)
	dlRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(dlRR, dlReq)

	if dlRR.Code != http.StatusOK {
		t.Fatalf("download status = %d", dlRR.Code)
	}
	if ct := dlRR.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("download content type = %q", ct)
	}
	downloaded, _ := io.ReadAll(dlRR.Body)
	if len(downloaded) == 0 || bytes.Equal(downloaded, original) {
		t.Fatal("download should serve rewritten bytes")
	}
	if _, err := fit.Decode(bytes.NewReader(downloaded)); err != nil {
		t.Fatalf("downloaded file fails reference decode: %v", err)
	}
}

func TestDownloadUnknownToken(t *testing.T) {
	srv := NewServer()
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/download/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
