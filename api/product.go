package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core/allocation"
)

const (
	CtxKeyProduct   CtxKey = "product"
	CtxKeyBatch     CtxKey = "batch"
	CtxKeyOrderItem CtxKey = "orderItem"
)

const eventBuffer = 16

type ProductApi struct {
	service ProductService
	bus     Dispatcher
	hub     EventHub
}

func NewProductApi(service ProductService, bus Dispatcher, hub EventHub) *ProductApi {
	return &ProductApi{service: service, bus: bus, hub: hub}
}

func (a *ProductApi) ConfigureRouter(r chi.Router) {
	r.With(Paginate).Get("/", a.List)
	r.Post("/", a.Create)
	r.Get("/events", a.Subscribe)

	r.Route("/{sku}", func(r chi.Router) {
		r.Use(a.ProductCtx)
		r.Get("/", a.Get)
		r.Put("/", a.Rename)
		r.Delete("/", a.Discard)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", a.CreateBatch)

			r.Route("/{batchId}", func(r chi.Router) {
				r.Use(a.BatchCtx)
				r.Get("/", a.GetBatch)
				r.Put("/", a.ChangeBatchQuantity)
				r.Delete("/", a.DiscardBatch)
			})
		})

		r.Route("/items", func(r chi.Router) {
			r.Post("/", a.CreateOrderItem)

			r.Route("/{itemId}", func(r chi.Router) {
				r.Use(a.OrderItemCtx)
				r.Get("/", a.GetOrderItem)
				r.Put("/", a.UpdateOrderItem)
				r.Delete("/", a.DiscardOrderItem)
				r.Post("/allocation", a.Allocate)
			})
		})
	})
}

// Subscribe streams every committed event to the client over a websocket.
// Clients only see events handled by the instance they are connected to.
func (a *ProductApi) Subscribe(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("client requesting subscription")

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Err(err).Msg("failed to establish event subscription connection")
		Render(w, r, ErrInternalServer)
		return
	}
	go a.stream(conn)
}

func (a *ProductApi) stream(conn net.Conn) {
	defer conn.Close()

	ch := make(chan allocation.Event, eventBuffer)
	id := a.hub.Subscribe(ch)
	defer a.hub.Unsubscribe(id)

	// Nothing is expected from the client, reading only notices it leaving.
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				a.hub.Unsubscribe(id)
				return
			}
		}
	}()

	for evt := range ch {
		body, err := allocation.Marshal(evt)
		if err != nil {
			log.Err(err).Interface("clientId", id).Msg("failed to marshal event")
			continue
		}

		log.Debug().Interface("clientId", id).Str("event", evt.Name()).Msg("sending event to client")
		if err = wsutil.WriteServerText(conn, body); err != nil {
			log.Err(err).Interface("clientId", id).Msg("failed to write server message, disconnecting client")
			return
		}
	}
}

func (a *ProductApi) List(w http.ResponseWriter, r *http.Request) {
	limit := r.Context().Value(CtxKeyLimit).(int)
	offset := r.Context().Value(CtxKeyOffset).(int)

	products, err := a.service.ListProducts(r.Context(), limit, offset)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	RenderList(w, r, NewProductListResponse(products))
}

func (a *ProductApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &ProductRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	skuID, err := a.bus.Dispatch(r.Context(), allocation.NewCreateProduct(data.SkuName))
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	product, err := a.service.GetProduct(r.Context(), skuID)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewProductResponse(product))
}

func (a *ProductApi) ProductCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skuID, err := uuid.Parse(chi.URLParam(r, "sku"))
		if err != nil {
			Render(w, r, ErrInvalidRequest(errors.New("sku must be a uuid")))
			return
		}

		product, err := a.service.GetProduct(r.Context(), skuID)
		if err != nil {
			Render(w, r, ErrFromDomain(err))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyProduct, product)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *ProductApi) BatchCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

		batchID, err := uuid.Parse(chi.URLParam(r, "batchId"))
		if err != nil {
			Render(w, r, ErrInvalidRequest(errors.New("batchId must be a uuid")))
			return
		}

		batch, err := product.Batch(batchID)
		if err != nil {
			Render(w, r, ErrFromDomain(err))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyBatch, batch)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *ProductApi) OrderItemCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			Render(w, r, ErrInvalidRequest(errors.New("itemId must be a uuid")))
			return
		}

		item, err := product.OrderItem(itemID)
		if err != nil {
			Render(w, r, ErrFromDomain(err))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyOrderItem, item)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *ProductApi) Get(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	Render(w, r, NewProductResponse(product))
}

func (a *ProductApi) Rename(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

	data := &ProductRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	if _, err := a.bus.Dispatch(r.Context(), allocation.NewUpdateProduct(product.SkuID(), data.SkuName)); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	updated, err := a.service.GetProduct(r.Context(), product.SkuID())
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	Render(w, r, NewProductResponse(updated))
}

func (a *ProductApi) Discard(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

	if _, err := a.bus.Dispatch(r.Context(), allocation.NewDiscardProduct(product.SkuID())); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	render.NoContent(w, r)
}

func (a *ProductApi) CreateBatch(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

	data := &CreateBatchRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	batchID, err := a.bus.Dispatch(r.Context(), allocation.NewCreateBatch(product.SkuID(), *data.Quantity, data.ETA))
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	a.renderBatch(w, r, product.SkuID(), batchID, http.StatusCreated)
}

func (a *ProductApi) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch := r.Context().Value(CtxKeyBatch).(*allocation.Batch)
	Render(w, r, NewBatchResponse(batch))
}

func (a *ProductApi) ChangeBatchQuantity(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	batch := r.Context().Value(CtxKeyBatch).(*allocation.Batch)

	data := &QuantityRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	cmd := allocation.NewChangeBatchQuantity(product.SkuID(), batch.ID, *data.Quantity)
	if _, err := a.bus.Dispatch(r.Context(), cmd); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	a.renderBatch(w, r, product.SkuID(), batch.ID, http.StatusOK)
}

func (a *ProductApi) DiscardBatch(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	batch := r.Context().Value(CtxKeyBatch).(*allocation.Batch)

	if _, err := a.bus.Dispatch(r.Context(), allocation.NewDiscardBatch(product.SkuID(), batch.ID)); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	render.NoContent(w, r)
}

func (a *ProductApi) CreateOrderItem(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)

	data := &QuantityRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	itemID, err := a.bus.Dispatch(r.Context(), allocation.NewCreateOrderItem(product.SkuID(), *data.Quantity))
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	a.renderOrderItem(w, r, product.SkuID(), itemID, http.StatusCreated)
}

func (a *ProductApi) GetOrderItem(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	item := r.Context().Value(CtxKeyOrderItem).(*allocation.OrderItem)
	Render(w, r, NewOrderItemResponse(product, item))
}

func (a *ProductApi) UpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	item := r.Context().Value(CtxKeyOrderItem).(*allocation.OrderItem)

	data := &QuantityRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	cmd := allocation.NewUpdateOrderItem(product.SkuID(), item.ID, *data.Quantity)
	if _, err := a.bus.Dispatch(r.Context(), cmd); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	a.renderOrderItem(w, r, product.SkuID(), item.ID, http.StatusOK)
}

func (a *ProductApi) DiscardOrderItem(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	item := r.Context().Value(CtxKeyOrderItem).(*allocation.OrderItem)

	if _, err := a.bus.Dispatch(r.Context(), allocation.NewDiscardOrderItem(product.SkuID(), item.ID)); err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	render.NoContent(w, r)
}

// Allocate answers 200 whether or not stock was found. An out of stock item
// comes back with allocated false.
func (a *ProductApi) Allocate(w http.ResponseWriter, r *http.Request) {
	product := r.Context().Value(CtxKeyProduct).(*allocation.Product)
	item := r.Context().Value(CtxKeyOrderItem).(*allocation.OrderItem)

	batchID, err := a.bus.Dispatch(r.Context(), allocation.NewAllocate(product.SkuID(), item.ID))
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	Render(w, r, NewAllocationResponse(item.ID, batchID))
}

func (a *ProductApi) renderBatch(w http.ResponseWriter, r *http.Request, skuID, batchID uuid.UUID, status int) {
	product, err := a.service.GetProduct(r.Context(), skuID)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	batch, err := product.Batch(batchID)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	render.Status(r, status)
	Render(w, r, NewBatchResponse(batch))
}

func (a *ProductApi) renderOrderItem(w http.ResponseWriter, r *http.Request, skuID, itemID uuid.UUID, status int) {
	product, err := a.service.GetProduct(r.Context(), skuID)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}
	item, err := product.OrderItem(itemID)
	if err != nil {
		Render(w, r, ErrFromDomain(err))
		return
	}

	render.Status(r, status)
	Render(w, r, NewOrderItemResponse(product, item))
}
