package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/money"
)

func encodeFood(e *jx.Encoder, f catalog.Food) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", f.ID)
		intField(e, "branch_id", f.BranchID)
		strField(e, "name", f.Name)
		decField(e, "price", f.Price)
		intField(e, "discount_percent", int64(f.DiscountPercent))
		decField(e, "final_price", f.FinalPrice())
		strField(e, "final_price_formatted", money.Format(f.FinalPrice()))
		strField(e, "image_url", f.ImageURL)
	})
}

func encodeBranch(e *jx.Encoder, b catalog.Branch) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", b.ID)
		strField(e, "name", b.Name)
		strField(e, "address", b.Address)
		strField(e, "phone", b.Phone)
	})
}

func encodeSearchResult(e *jx.Encoder, s catalog.SearchResult) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "name", s.Name)
		decField(e, "min_price", s.MinPrice)
		decField(e, "max_price", s.MaxPrice)
		intField(e, "branch_count", int64(s.BranchCount))
		decField(e, "avg_rating", s.AvgRating)
		intField(e, "review_count", int64(s.ReviewCount))
		strField(e, "image_url", s.ImageURL)
	})
}

func encodeOption(e *jx.Encoder, o catalog.Option) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "food_id", o.FoodID)
		intField(e, "branch_id", o.BranchID)
		strField(e, "branch_name", o.BranchName)
		decField(e, "original_price", o.OriginalPrice)
		intField(e, "discount_percent", int64(o.Discount))
		decField(e, "final_price", o.FinalPrice)
		strField(e, "image_url", o.ImageURL)
	})
}

func (h *Handler) listBranches(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Branches(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArray(e, list, encodeBranch) })
}

func (h *Handler) getBranch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	b, err := h.Catalog.Branch(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBranch(e, *b) })
}

func (h *Handler) listFoods(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryID(r, "branch_id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	list, err := h.Catalog.Foods(r.Context(), branchID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArray(e, list, encodeFood) })
}

func (h *Handler) searchFoods(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArray(e, list, encodeSearchResult) })
}

func (h *Handler) foodOptions(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(r.Context(), w, badRequest("name required"))
		return
	}
	list, err := h.Catalog.Options(r.Context(), name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArray(e, list, encodeOption) })
}

func (h *Handler) getFood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := h.Catalog.Food(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFood(e, *f) })
}

func decodeFoodInput(w http.ResponseWriter, r *http.Request) (catalog.FoodInput, error) {
	var in catalog.FoodInput
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			in.Name, err = d.Str()
		case "price":
			in.Price, err = decodeDecimal(d)
		case "discount_percent":
			in.DiscountPercent, err = d.Int()
		case "image_url":
			in.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func (h *Handler) createFood(w http.ResponseWriter, r *http.Request) {
	in, err := decodeFoodInput(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := h.Catalog.CreateFood(r.Context(), sessionFrom(r), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeFood(e, *f) })
}

func (h *Handler) updateFood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	in, err := decodeFoodInput(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := h.Catalog.UpdateFood(r.Context(), sessionFrom(r), id, in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFood(e, *f) })
}

func (h *Handler) deleteFood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := h.Catalog.DeleteFood(r.Context(), sessionFrom(r), id); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
