package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/handler/dto"
	"github.com/yourusername/quiz-engine/internal/middleware"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
	"github.com/yourusername/quiz-engine/internal/service"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
)

// QuizHandler обрабатывает запросы, связанные с викторинами
type QuizHandler struct {
	quizService   *service.QuizService
	resultService *service.ResultService
	quizManager   *service.QuizManager
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(
	quizService *service.QuizService,
	resultService *service.ResultService,
	quizManager *service.QuizManager,
) *QuizHandler {
	return &QuizHandler{
		quizService:   quizService,
		resultService: resultService,
		quizManager:   quizManager,
	}
}

// CreateQuestionRequest - вопрос в запросе на создание викторины
type CreateQuestionRequest struct {
	Text          string   `json:"text" binding:"required,max=500"`
	Options       []string `json:"options" binding:"required,len=4"`
	CorrectOption int      `json:"correct_option" binding:"min=0,max=3"`
	Tags          []string `json:"tags"`
}

// CreateQuizRequest представляет запрос на создание викторины
type CreateQuizRequest struct {
	Title             string                  `json:"title" binding:"required,min=3,max=100"`
	Topic             string                  `json:"topic" binding:"omitempty,max=100"`
	Difficulty        string                  `json:"difficulty" binding:"omitempty,max=20"`
	Description       string                  `json:"description" binding:"omitempty,max=500"`
	ScheduledTime     time.Time               `json:"scheduled_time" binding:"required"`
	IsPaid            bool                    `json:"is_paid"`
	EntryFee          decimal.Decimal         `json:"entry_fee"`
	CommissionPercent decimal.Decimal         `json:"commission_percent"`
	PrizeSplits       []int                   `json:"prize_splits" binding:"omitempty,len=3"` // 0 = 50/30/20
	Questions         []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

func (r *CreateQuizRequest) toEntity() *entity.Quiz {
	quiz := &entity.Quiz{
		Title:             r.Title,
		Topic:             r.Topic,
		Difficulty:        r.Difficulty,
		Description:       r.Description,
		ScheduledTime:     r.ScheduledTime,
		IsPaid:            r.IsPaid,
		EntryFee:          r.EntryFee,
		CommissionPercent: r.CommissionPercent,
		Questions:         make([]entity.Question, len(r.Questions)),
	}
	if len(r.PrizeSplits) == 3 {
		quiz.PrizeSplitFirst, quiz.PrizeSplitSecond, quiz.PrizeSplitThird = r.PrizeSplits[0], r.PrizeSplits[1], r.PrizeSplits[2]
	}
	for i, q := range r.Questions {
		quiz.Questions[i] = entity.Question{
			Text:          q.Text,
			Options:       entity.StringArray(q.Options),
			CorrectOption: q.CorrectOption,
			Tags:          entity.StringArray(q.Tags),
		}
	}
	return quiz
}

// SubmitAnswerRequest - ответ на вопрос через HTTP
type SubmitAnswerRequest struct {
	QuestionID     uint `json:"question_id" binding:"required"`
	SelectedOption *int `json:"selected_option"` // null - вопрос пропущен
	TimeTakenSec   int  `json:"time_taken"`
}

// CreateQuiz обрабатывает запрос на создание викторины
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz := req.toEntity()
	if err := h.quizService.CreateQuiz(c.Request.Context(), quiz); err != nil {
		h.handleQuizError(c, err)
		return
	}

	log.Printf("[QuizHandler] Создана викторина #%d '%s' на %s", quiz.ID, quiz.Title, quiz.ScheduledTime.Format(time.RFC3339))
	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, true))
}

// GetQuiz возвращает информацию о викторине. Вопросы не включаются до начала викторины.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, false))
}

// ListQuizzes возвращает список викторин с пагинацией и фильтрацией
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	page, pageSize := pagination(c)

	filters := repository.QuizFilters{
		Status: c.Query("status"), // scheduled, countdown, in_progress, completed
	}
	if dateFromStr := c.Query("date_from"); dateFromStr != "" {
		if dateFrom, err := time.Parse(time.RFC3339, dateFromStr); err == nil {
			filters.DateFrom = &dateFrom
		}
	}
	if dateToStr := c.Query("date_to"); dateToStr != "" {
		if dateTo, err := time.Parse(time.RFC3339, dateToStr); err == nil {
			filters.DateTo = &dateTo
		}
	}

	quizzes, total, err := h.quizService.ListQuizzes(c.Request.Context(), filters, page, pageSize)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedQuizResponse(quizzes, total, page, pageSize))
}

// RegisterForQuiz регистрирует пользователя на викторину
func (h *QuizHandler) RegisterForQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	userID, ok := currentUserID(c)
	if !ok {
		h.handleQuizError(c, apperrors.ErrUnauthorized)
		return
	}

	participant, err := h.quizManager.Register(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewParticipantResponse(participant))
}

// UnregisterFromQuiz отменяет регистрацию до начала обратного отсчета
func (h *QuizHandler) UnregisterFromQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	userID, ok := currentUserID(c)
	if !ok {
		h.handleQuizError(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.quizManager.Unregister(c.Request.Context(), quizID, userID); err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinWaitingRoom отмечает, что участник вошел в комнату ожидания
func (h *QuizHandler) JoinWaitingRoom(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	userID, ok := currentUserID(c)
	if !ok {
		h.handleQuizError(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.quizManager.JoinWaitingRoom(c.Request.Context(), quizID, userID); err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined waiting room"})
}

// StartQuiz объявляет обратный отсчет. Повторный вызов возвращает то же время начала.
func (h *QuizHandler) StartQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	startAt, err := h.quizManager.StartQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	state, _ := h.quizManager.SessionState(quizID)
	c.JSON(http.StatusOK, dto.StartQuizResponse{QuizID: quizID, StartTime: startAt, State: state})
}

// EndQuiz принудительно завершает викторину
func (h *QuizHandler) EndQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	if err := h.quizManager.EndQuiz(c.Request.Context(), quizID); err != nil {
		h.handleQuizError(c, err)
		return
	}
	log.Printf("[QuizHandler] Викторина #%d завершена администратором", quizID)
	c.JSON(http.StatusOK, gin.H{"message": "Quiz ended"})
}

// SubmitAnswer принимает ответ пользователя
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	userID, ok := currentUserID(c)
	if !ok {
		h.handleQuizError(c, apperrors.ErrUnauthorized)
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.quizManager.SubmitAnswer(c.Request.Context(), quizmanager.SubmitAnswerRequest{
		QuizID:         quizID,
		UserID:         userID,
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		TimeTakenSec:   req.TimeTakenSec,
	})
	if err != nil {
		h.handleQuizError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetQuizResults возвращает итоговую таблицу завершенной викторины
func (h *QuizHandler) GetQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	results, err := h.resultService.GetResults(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": quizID,
		"results": dto.NewListResultResponse(results),
		"total":   len(results),
	})
}

// GetUserQuizResult возвращает результат и ответы текущего пользователя
func (h *QuizHandler) GetUserQuizResult(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	userID, ok := currentUserID(c)
	if !ok {
		h.handleQuizError(c, apperrors.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	result, err := h.resultService.GetUserResult(ctx, quizID, userID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}
	answers, err := h.resultService.GetUserAnswers(ctx, quizID, userID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  dto.NewResultResponse(result),
		"answers": answers,
	})
}

// ExportQuizResults экспортирует результаты викторины в CSV или Excel формате
// GET /api/quizzes/:id/results/export?format=csv|xlsx
func (h *QuizHandler) ExportQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}

	rows, err := h.resultService.ExportRows(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz_%d_results_%s", quizID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, rows, filename)
	default:
		h.exportCSV(c, rows, filename)
	}
}

var exportHeaders = []string{"Место", "Пользователь", "Очки", "Бонус", "Итог", "Правильных", "Время (сек)", "Победитель", "Приз"}

func winnerLabel(isWinner bool) string {
	if isWinner {
		return "Да"
	}
	return "Нет"
}

// exportCSV экспортирует результаты в CSV с правильным экранированием спецсимволов
func (h *QuizHandler) exportCSV(c *gin.Context, rows []service.ExportRow, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	_ = writer.Write(exportHeaders)
	for _, r := range rows {
		prize := ""
		if r.PrizeAmount.IsPositive() {
			prize = r.PrizeAmount.StringFixed(2)
		}
		_ = writer.Write([]string{
			strconv.Itoa(r.Rank),
			sanitizeForExcel(r.Username),
			strconv.Itoa(r.TotalScore),
			strconv.Itoa(r.AdditionalPoints),
			strconv.Itoa(r.FinalScore),
			strconv.Itoa(r.CorrectAnswers),
			strconv.Itoa(r.TotalTimeTaken),
			winnerLabel(r.IsWinner),
			prize,
		})
	}
}

// exportXLSX экспортирует результаты в Excel с использованием StreamWriter
func (h *QuizHandler) exportXLSX(c *gin.Context, rows []service.ExportRow, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		log.Printf("[QuizHandler] Ошибка переименования листа: %v", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[QuizHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, len(exportHeaders))
	for i, hdr := range exportHeaders {
		headers[i] = hdr
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[QuizHandler] Ошибка записи заголовков: %v", err)
	}

	for i, r := range rows {
		rowNum := i + 2 // 1 - заголовки
		prize, _ := r.PrizeAmount.Float64()
		row := []interface{}{
			r.Rank, sanitizeForExcel(r.Username), r.TotalScore, r.AdditionalPoints, r.FinalScore,
			r.CorrectAnswers, r.TotalTimeTaken, winnerLabel(r.IsWinner), prize,
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			log.Printf("[QuizHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[QuizHandler] Ошибка при Flush: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[QuizHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// handleQuizError обрабатывает ошибки от сервисов викторин и отправляет соответствующий HTTP ответ
func (h *QuizHandler) handleQuizError(c *gin.Context, err error) {
	respondError(c, "QuizHandler", err)
}

// respondError сопоставляет категорию ошибки с HTTP-кодом
func respondError(c *gin.Context, component string, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in %s: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUserID достает ID пользователя, положенный RequireAuth
func currentUserID(c *gin.Context) (uint, bool) {
	raw, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	userID, ok := raw.(uint)
	return userID, ok && userID != 0
}

// pagination читает page и page_size из query
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}
