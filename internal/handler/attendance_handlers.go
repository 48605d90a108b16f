package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schooladmin/internal/apperr"
	"schooladmin/internal/attendance"
)

type attendanceRecordRequest struct {
	EntityID    int64  `json:"entityId" binding:"required,gt=0"`
	EntityType  string `json:"entityType" binding:"omitempty,entity_type"`
	Date        string `json:"date" binding:"required,iso_date"`
	Status      string `json:"status" binding:"required,attendance_status"`
	CourseID    string `json:"courseId" binding:"required"`
	TimeSlot    int    `json:"timeSlot" binding:"required,gt=0"`
	SessionType string `json:"sessionType" binding:"required,session_type"`
}

type saveAttendanceRequest struct {
	Records []attendanceRecordRequest `json:"records" binding:"required,min=1,dive"`
}

// SaveAttendance bulk upserts attendance records.
func (h *Handler) SaveAttendance(c *gin.Context) {
	var req saveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	records := make([]attendance.Record, 0, len(req.Records))
	for _, r := range req.Records {
		entityType := attendance.EntityType(r.EntityType)
		if entityType == "" {
			entityType = attendance.EntityStudent
		}
		records = append(records, attendance.Record{
			EntityID:    r.EntityID,
			EntityType:  entityType,
			Date:        r.Date,
			Status:      attendance.Status(r.Status),
			CourseID:    r.CourseID,
			TimeSlot:    r.TimeSlot,
			SessionType: attendance.SessionType(r.SessionType),
		})
	}
	if err := h.attendance.SaveAttendance(c.Request.Context(), records); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance saved successfully"})
}

// GetAttendance returns one session's records. All four query parameters are
// required.
func (h *Handler) GetAttendance(c *gin.Context) {
	f := attendance.Filter{
		Date:        c.Query("date"),
		CourseID:    c.Query("courseId"),
		SessionType: attendance.SessionType(c.Query("sessionType")),
	}
	if v := c.Query("timeSlot"); v != "" {
		slot, err := strconv.Atoi(v)
		if err != nil || slot <= 0 {
			h.writeError(c, apperr.ErrInvalidArgument)
			return
		}
		f.TimeSlot = slot
	}
	records, err := h.attendance.GetAttendanceRecords(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// AttendanceHistory lists the write history of one entity.
func (h *Handler) AttendanceHistory(c *gin.Context) {
	entityID, err := strconv.ParseInt(c.Param("entityId"), 10, 64)
	if err != nil {
		h.writeError(c, apperr.ErrInvalidArgument)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.attendance.ListHistory(c.Request.Context(), entityID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
