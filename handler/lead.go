package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	leadcapture "github.com/phbpx/leadcapture"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// LeadService is the submission pipeline behind the lead routes.
type LeadService interface {
	PreCheck(ctx context.Context, c leadcapture.Candidate) error
	CreateLead(ctx context.Context, c leadcapture.Candidate) (leadcapture.Lead, error)
	ListLeads(ctx context.Context) ([]leadcapture.Lead, error)
	DeleteLead(ctx context.Context, id string) (leadcapture.Lead, error)
}

type LeadHandler struct {
	service LeadService
	log     *otelzap.SugaredLogger
}

func NewLeadHandler(service LeadService, log *otelzap.SugaredLogger) *LeadHandler {
	return &LeadHandler{
		service: service,
		log:     log,
	}
}

// Routes registers the lead endpoints, including both pre-check aliases.
func (lh LeadHandler) Routes(r chi.Router) {
	r.Post("/validar-etapa-1", lh.PreCheck)

	r.Route("/leads", func(r chi.Router) {
		r.Post("/validar-etapa1", lh.PreCheck)
		r.Post("/", lh.Create)
		r.Get("/", lh.List)
		r.Delete("/{id}", lh.Delete)
	})
}

func (lh LeadHandler) PreCheck(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var candidate leadcapture.Candidate
	if err := decode(r, &candidate); err != nil {
		lh.log.Ctx(ctx).Errorw("PreCheck", "error", err.Error())
		respond(ctx, rw, http.StatusBadRequest, message{Message: msgInvalidBody, Errors: decodeErrors(err)})
		return
	}

	if err := lh.service.PreCheck(ctx, candidate); err != nil {
		var verr *leadcapture.ValidationError
		if errors.As(err, &verr) {
			recordRejection("precheck")
			respond(ctx, rw, http.StatusBadRequest, message{Errors: verr.Errors})
			return
		}
		lh.log.Ctx(ctx).Errorw("PreCheck", "error", err.Error())
		lh.respondErr(ctx, rw, "Erro ao verificar duplicidade", err)
		return
	}

	respondMsg(ctx, rw, http.StatusOK, "Etapa 1 validada com sucesso.")
}

func (lh LeadHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var candidate leadcapture.Candidate
	if err := decode(r, &candidate); err != nil {
		lh.log.Ctx(ctx).Errorw("Create", "error", err.Error())
		respond(ctx, rw, http.StatusBadRequest, message{Message: msgInvalidBody, Errors: decodeErrors(err)})
		return
	}

	lead, err := lh.service.CreateLead(ctx, candidate)
	if err != nil {
		var verr *leadcapture.ValidationError
		if errors.As(err, &verr) {
			recordRejection("create")
			respond(ctx, rw, http.StatusBadRequest, message{Message: "Dados inválidos.", Errors: verr.Errors})
			return
		}
		lh.log.Ctx(ctx).Errorw("Create", "error", err.Error())
		lh.respondErr(ctx, rw, "Erro ao salvar lead", err)
		return
	}

	recordLeadCreated(lead.Profile)
	lh.log.Ctx(ctx).Infow("Create", "id", lead.ID, "profile", lead.Profile)
	respond(ctx, rw, http.StatusCreated, lead)
}

func (lh LeadHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leads, err := lh.service.ListLeads(ctx)
	if err != nil {
		lh.log.Ctx(ctx).Errorw("List", "error", err.Error())
		lh.respondErr(ctx, rw, "Erro ao buscar leads", err)
		return
	}

	respond(ctx, rw, http.StatusOK, leads)
}

func (lh LeadHandler) Delete(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lead, err := lh.service.DeleteLead(ctx, chi.URLParam(r, "id"))
	if err != nil {
		lh.log.Ctx(ctx).Errorw("Delete", "error", err.Error())
		lh.respondErr(ctx, rw, "Erro ao excluir lead", err)
		return
	}

	respond(ctx, rw, http.StatusOK, struct {
		Message string           `json:"mensagem"`
		Lead    leadcapture.Lead `json:"lead"`
	}{"Lead excluído com sucesso.", lead})
}

const msgInvalidBody = "Corpo da requisição inválido."

// respondErr maps pipeline and store failures onto status codes. Validation
// failures are handled by each route since their bodies differ.
func (lh LeadHandler) respondErr(ctx context.Context, rw http.ResponseWriter, prefix string, err error) {
	switch {
	case errors.Is(err, leadcapture.ErrStoreUnavailable):
		respond(ctx, rw, http.StatusServiceUnavailable, message{
			Message: "Serviço temporariamente indisponível. Tente novamente mais tarde.",
			Details: err.Error(),
		})
	case errors.Is(err, leadcapture.ErrInvalidID):
		respondMsg(ctx, rw, http.StatusBadRequest, "ID inválido.")
	case errors.Is(err, leadcapture.ErrLeadNotFound):
		respondMsg(ctx, rw, http.StatusNotFound, "Lead não encontrado.")
	case errors.Is(err, leadcapture.ErrDuplicatedLead):
		recordRejection("conflict")
		respond(ctx, rw, http.StatusConflict, message{
			Message: "Lead já cadastrado.",
			Errors:  []string{"Email ou telefone já cadastrado."},
		})
	default:
		respondMsg(ctx, rw, http.StatusInternalServerError, prefix+": "+err.Error())
	}
}
