package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/inference/fake"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

func appendChunk(t *testing.T, handler *ModelsHandler, name string, chunk []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/models/"+name+"/bytes", bytes.NewReader(chunk))
	req.Header.Set("Content-Type", "application/octet-stream")
	req = requestWithChiParams(req, map[string]string{"name": name})
	recorder := httptest.NewRecorder()
	handler.AppendBytes(recorder, req)
	return recorder
}

func TestModelsHandler_AppendBytes_Concatenates(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)

	model := fake.DetectorModel
	split := len(model) / 3
	var last modelBytesResponse
	for _, chunk := range [][]byte{model[:split], model[split:]} {
		recorder := appendChunk(t, handler, database.BlobFaceDetection, chunk)
		assertStatusCode(t, recorder, http.StatusOK)
		parseJSONResponse(t, recorder, &last)
	}

	if last.Name != database.BlobFaceDetection || last.Size != int64(len(model)) {
		t.Errorf("unexpected response %+v", last)
	}
	stored, _ := d.blobs.Read(context.Background(), database.BlobFaceDetection)
	if !bytes.Equal(stored, model) {
		t.Error("stored blob does not match uploaded chunks")
	}
}

func TestModelsHandler_AppendBytes_UnknownModel(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)

	recorder := appendChunk(t, handler, "face-landmarks", []byte{1, 2, 3})

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertErrorKind(t, recorder, recognition.KindUploadSequence)
}

func TestModelsHandler_AppendBytes_ChunkTooLarge(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, 8)

	recorder := appendChunk(t, handler, database.BlobFaceRecognition, make([]byte, 16))

	assertStatusCode(t, recorder, http.StatusRequestEntityTooLarge)
	assertErrorKind(t, recorder, kindTooLarge)
	if size, _ := d.blobs.Size(context.Background(), database.BlobFaceRecognition); size != 0 {
		t.Errorf("expected nothing stored, got %d bytes", size)
	}
}

func TestModelsHandler_AppendBytes_StoreError(t *testing.T) {
	d := newTestDeps(t)
	d.blobs.AppendError = errMock
	handler := NewModelsHandler(d.service, testMaxBytes)

	recorder := appendChunk(t, handler, database.BlobFaceDetection, []byte{1})

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestModelsHandler_ClearBytes(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)
	d.blobs.Append(context.Background(), database.BlobFaceRecognition, []byte("stale"))

	req := httptest.NewRequest("DELETE", "/api/v1/models/face-recognition/bytes", nil)
	req = requestWithChiParams(req, map[string]string{"name": database.BlobFaceRecognition})
	recorder := httptest.NewRecorder()
	handler.ClearBytes(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if size, _ := d.blobs.Size(context.Background(), database.BlobFaceRecognition); size != 0 {
		t.Errorf("expected empty blob, got %d bytes", size)
	}
}

func TestModelsHandler_Setup(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)
	appendChunk(t, handler, database.BlobFaceDetection, fake.DetectorModel)
	appendChunk(t, handler, database.BlobFaceRecognition, fake.EmbedderModel)

	req := httptest.NewRequest("POST", "/api/v1/models/setup", nil)
	recorder := httptest.NewRecorder()
	handler.Setup(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	req = httptest.NewRequest("GET", "/api/v1/models/status", nil)
	recorder = httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var st recognition.Status
	parseJSONResponse(t, recorder, &st)
	if !st.Models.Loaded {
		t.Error("expected models loaded")
	}
	if st.Blobs[database.BlobFaceDetection] != int64(len(fake.DetectorModel)) {
		t.Errorf("unexpected detector blob size %d", st.Blobs[database.BlobFaceDetection])
	}
	if st.RegistryIndex != "exact" {
		t.Errorf("expected exact registry index, got %s", st.RegistryIndex)
	}
}

func TestModelsHandler_Setup_EmptyBlob(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)
	appendChunk(t, handler, database.BlobFaceDetection, fake.DetectorModel)

	req := httptest.NewRequest("POST", "/api/v1/models/setup", nil)
	recorder := httptest.NewRecorder()
	handler.Setup(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertErrorKind(t, recorder, recognition.KindLoadError)
}

func TestModelsHandler_Setup_MalformedModel(t *testing.T) {
	d := newTestDeps(t)
	handler := NewModelsHandler(d.service, testMaxBytes)
	appendChunk(t, handler, database.BlobFaceDetection, []byte("garbage"))
	appendChunk(t, handler, database.BlobFaceRecognition, fake.EmbedderModel)

	req := httptest.NewRequest("POST", "/api/v1/models/setup", nil)
	recorder := httptest.NewRecorder()
	handler.Setup(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertErrorKind(t, recorder, recognition.KindLoadError)
}

func TestModelsHandler_Status_StoreError(t *testing.T) {
	d := newTestDeps(t)
	d.blobs.SizeError = errMock
	handler := NewModelsHandler(d.service, testMaxBytes)

	req := httptest.NewRequest("GET", "/api/v1/models/status", nil)
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
