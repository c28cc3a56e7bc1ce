package api

import (
	"net/http"

	"dealer-portal/internal/service"
	"dealer-portal/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listBrands(c *gin.Context) {
	brands, err := h.catalog.ListBrands(c.Request.Context(), requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands, "count": len(brands)})
}

func (h *Handler) getBrand(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	brand, err := h.catalog.GetBrand(c.Request.Context(), id, requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand})
}

func (h *Handler) createBrand(c *gin.Context) {
	var req service.BrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	brand, err := h.catalog.CreateBrand(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"brand": brand})
}

func (h *Handler) updateBrand(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req service.BrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	brand, err := h.catalog.UpdateBrand(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand})
}

func (h *Handler) deleteBrand(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBrand(c.Request.Context(), id, requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Brand deleted"})
}

func (h *Handler) listSubBrands(c *gin.Context) {
	subBrands, err := h.catalog.ListSubBrands(c.Request.Context(), requestDealer(c), queryInt64(c, "brand_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub_brands": subBrands, "count": len(subBrands)})
}

func (h *Handler) createSubBrand(c *gin.Context) {
	var req service.SubBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	subBrand, err := h.catalog.CreateSubBrand(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sub_brand": subBrand})
}

func (h *Handler) deleteSubBrand(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteSubBrand(c.Request.Context(), id, requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sub-brand deleted"})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context(), requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

func (h *Handler) getCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"), requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (h *Handler) createCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	category, err := h.catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

func (h *Handler) updateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	category, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id"), requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

func (h *Handler) listSubCategories(c *gin.Context) {
	subCategories, err := h.catalog.ListSubCategories(c.Request.Context(), requestDealer(c), c.Query("category_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub_categories": subCategories, "count": len(subCategories)})
}

func (h *Handler) createSubCategory(c *gin.Context) {
	var req service.SubCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	subCategory, err := h.catalog.CreateSubCategory(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sub_category": subCategory})
}

func (h *Handler) deleteSubCategory(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteSubCategory(c.Request.Context(), id, requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sub-category deleted"})
}

func (h *Handler) listProducts(c *gin.Context) {
	filter := store.ProductFilter{
		CategoryID: c.Query("category_id"),
		BrandID:    queryInt64(c, "brand_id"),
	}
	products, err := h.catalog.ListProducts(c.Request.Context(), requestDealer(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"), requestDealer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	dealerID, ok := dealerFor(c, req.DealerID)
	if !ok {
		return
	}
	req.DealerID = dealerID

	product, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id"), requestDealer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
