package server

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"depot/internal/api"
	"depot/internal/models"
)

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request, user *models.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	folder, err := normalizeFolderName(r.FormValue("folder"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		for _, key := range []string{"files", "file"} {
			headers = append(headers, r.MultipartForm.File[key]...)
		}
	}
	if len(headers) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("at least one file is required"), ErrCodeMissingRequired))
		return
	}

	items := make([]UploadItem, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
			return
		}
		defer f.Close()
		items = append(items, UploadItem{Filename: header.Filename, Content: f})
	}

	resp, err := s.fileService.UploadBatch(r.Context(), user, items, folder)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request, user *models.User) {
	groups, err := s.store.ListFilesGrouped(r.Context(), user.Username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.ListFilesResponse{Groups: make([]api.FileGroup, 0, len(groups))}
	for _, group := range groups {
		resp.Groups = append(resp.Groups, api.FileGroup{Name: group.Name, Files: group.Files})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, user *models.User) {
	fileID, ok := s.pathFileIDOrBadRequest(w, r)
	if !ok {
		return
	}

	file, rc, err := s.fileService.Download(r.Context(), user, fileID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	s.streamFile(w, file, rc)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, user *models.User) {
	fileID, ok := s.pathFileIDOrBadRequest(w, r)
	if !ok {
		return
	}

	file, err := s.fileService.Delete(r.Context(), user, fileID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":       file.ID,
		"filename": file.Filename,
		"freed":    !file.IsDuplicate,
	})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req api.FolderCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	name, err := normalizeFolderName(req.Name)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	if name == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("folder name is required"), ErrCodeMissingRequired))
		return
	}

	folder, err := s.store.CreateFolder(r.Context(), name, user.Username, time.Now().UTC())
	if err != nil {
		s.writeServiceError(w, r, classifyStoreError(err))
		return
	}
	s.writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request, user *models.User) {
	folders, err := s.store.ListFolders(r.Context(), user.Username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, folders)
}

func (s *Server) streamFile(w http.ResponseWriter, file *models.File, rc io.Reader) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename})
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("download aborted", "file_id", file.ID, "error", err)
	}
}
