package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/archivelab/bookhaven/internal/records"
	"github.com/archivelab/bookhaven/internal/usermeta"
)

type recordPayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	ExtraInfo     string `json:"extraInfo"`
	SourceURL     string `json:"sourceUrl"`
	FetchedAt     int64  `json:"fetchedAt"`
	FetchedByUser string `json:"fetchedByUser"`
}

type metadataPayload struct {
	RecordID    string `json:"recordId"`
	IsFavorite  bool   `json:"isFavorite"`
	Note        string `json:"note"`
	LastUpdated int64  `json:"lastUpdated"`
}

func recordToPayload(record *records.Record) recordPayload {
	return recordPayload{
		ID:            record.ID(),
		Title:         record.Title,
		Author:        record.Author,
		ExtraInfo:     record.ExtraInfo,
		SourceURL:     record.SourceURL,
		FetchedAt:     record.FetchedAt,
		FetchedByUser: record.FetchedByUser,
	}
}

func recordsToPayload(batch []*records.Record) []recordPayload {
	payload := make([]recordPayload, 0, len(batch))
	for _, record := range batch {
		payload = append(payload, recordToPayload(record))
	}
	return payload
}

func metadataToPayload(entries []*usermeta.Meta) []metadataPayload {
	payload := make([]metadataPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, metadataPayload{
			RecordID:    entry.RecordID(),
			IsFavorite:  entry.IsFavorite,
			Note:        entry.Note,
			LastUpdated: entry.LastUpdated,
		})
	}
	return payload
}

func (h *httpHandler) handleListRecords(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": recordsToPayload(h.library.AllRecords())})
}

func (h *httpHandler) handleGetRecord(c *gin.Context) {
	record := h.library.GetRecord(c.Param("id"))
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, recordToPayload(record))
}

func (h *httpHandler) handleStoreRecords(c *gin.Context) {
	session := sessionFrom(c)

	var request struct {
		Records []recordPayload `json:"records"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	batch := make([]*records.Record, 0, len(request.Records))
	for _, item := range request.Records {
		fetchedBy := strings.TrimSpace(item.FetchedByUser)
		if fetchedBy == "" {
			fetchedBy = session.Username
		}
		record, err := records.NewRecord(item.ID, item.Title, item.Author, item.ExtraInfo, item.SourceURL, item.FetchedAt, fetchedBy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_record"})
			return
		}
		batch = append(batch, record)
	}

	stored, err := h.library.StoreRecords(session, batch)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored})
}

func (h *httpHandler) handleDeleteRecord(c *gin.Context) {
	found, err := h.library.DeleteRecord(sessionFrom(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleSearchTitle(c *gin.Context) {
	keyword := c.Query("q")
	results := h.library.QueryByTitle(sessionFrom(c), keyword)
	c.JSON(http.StatusOK, gin.H{"records": recordsToPayload(results)})
}

func (h *httpHandler) handleSearchTime(c *gin.Context) {
	start, startErr := strconv.ParseInt(c.Query("start"), 10, 64)
	end, endErr := strconv.ParseInt(c.Query("end"), 10, 64)
	if startErr != nil || endErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	results := h.library.QueryByTimeRange(sessionFrom(c), start, end)
	c.JSON(http.StatusOK, gin.H{"records": recordsToPayload(results)})
}

func (h *httpHandler) handleSearchOnline(c *gin.Context) {
	var request struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	results, err := h.fetch.Search(c.Request.Context(), sessionFrom(c), request.Query)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recordsToPayload(results)})
}

func (h *httpHandler) handleToggleFavorite(c *gin.Context) {
	favorite, err := h.library.ToggleFavorite(sessionFrom(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": favorite})
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var request struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.library.UpdateNote(sessionFrom(c), c.Param("id"), request.Note); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *httpHandler) handleFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": recordsToPayload(h.library.Favorites(sessionFrom(c)))})
}

func (h *httpHandler) handleUserMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metadata": metadataToPayload(h.library.UserMetadata(sessionFrom(c)))})
}
