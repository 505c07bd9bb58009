package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FundRequest struct {
	Funder string `json:"funder"`
	Root   string `json:"root"`
	Amount string `json:"amount"`
}

type DistributionDTO struct {
	Token           string `json:"token"`
	Remaining       string `json:"remaining"`
	NextBatchNumber uint64 `json:"next_batch_number"`
}

type FundResponse struct {
	Status string `json:"status"`
	Data   struct {
		BatchNumber  uint64          `json:"batch_number"`
		Root         string          `json:"root"`
		Distribution DistributionDTO `json:"distribution"`
	} `json:"data"`
}

type ClaimEntryDTO struct {
	BatchNumber uint64   `json:"batch_number"`
	Amount      string   `json:"amount"`
	TokenIndex  int      `json:"token_index"`
	Proof       []string `json:"proof"`
}

type ClaimRequest struct {
	Tokens []string        `json:"tokens"`
	Claims []ClaimEntryDTO `json:"claims"`
}

type ClaimReceiptDTO struct {
	Token       string `json:"token"`
	BatchNumber uint64 `json:"batch_number"`
	Amount      string `json:"amount"`
}

type ClaimResponse struct {
	Status string            `json:"status"`
	Data   []ClaimReceiptDTO `json:"data"`
}

type CleanRequest struct {
	Tokens []string `json:"tokens"`
}

type CleanResponse struct {
	Status string   `json:"status"`
	Swept  []string `json:"swept"`
}

type DistributionResponse struct {
	Status string          `json:"status"`
	Data   DistributionDTO `json:"data"`
}

type BatchRootResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token       string `json:"token"`
		BatchNumber uint64 `json:"batch_number"`
		Root        string `json:"root"`
	} `json:"data"`
}

type IsClaimedResponse struct {
	Status string `json:"status"`
	Data   struct {
		Beneficiary string `json:"beneficiary"`
		Token       string `json:"token"`
		BatchNumber uint64 `json:"batch_number"`
		Claimed     bool   `json:"claimed"`
	} `json:"data"`
}
