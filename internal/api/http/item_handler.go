package http

import (
	"net/http"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
)

type ItemHandler struct {
	itemSvc service.ItemService
}

func NewItemHandler(itemSvc service.ItemService) *ItemHandler {
	return &ItemHandler{itemSvc: itemSvc}
}

type createItemBody struct {
	Title                string `json:"title"`
	Barcode              string `json:"barcode"`
	ReplacementCostCents int32  `json:"replacement_cost_cents"`
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createItemBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	item := &domain.Item{
		Title:                body.Title,
		Barcode:              body.Barcode,
		ReplacementCostCents: body.ReplacementCostCents,
	}
	if err := h.itemSvc.CreateItem(r.Context(), ActorFromContext(r.Context()), item); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.itemSvc.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type itemListResponse struct {
	Items    []domain.Item `json:"items"`
	Total    int32         `json:"total"`
	Page     int32         `json:"page"`
	PageSize int32         `json:"page_size"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.itemSvc.ListItems(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, itemListResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}
