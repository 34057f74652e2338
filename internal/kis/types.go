package kis

// Raw response shapes. The broker sends every number as a string.

type priceOutput struct {
	StckPrpr string `json:"stck_prpr"` // current price
	PrdyVrss string `json:"prdy_vrss"` // change vs previous close
	PrdyCtrt string `json:"prdy_ctrt"` // change rate, percent
	StckOprc string `json:"stck_oprc"`
	StckHgpr string `json:"stck_hgpr"`
	StckLwpr string `json:"stck_lwpr"`
	AcmlVol  string `json:"acml_vol"`
}

type priceResponse struct {
	Output priceOutput `json:"output"`
}

type stockInfoResponse struct {
	Output struct {
		Pdno         string `json:"pdno"`
		PrdtName     string `json:"prdt_name"`
		PrdtAbrvName string `json:"prdt_abrv_name"`
	} `json:"output"`
}

// askingPriceResponse carries ten levels per side as numbered fields.
type askingPriceResponse struct {
	Output1 map[string]string `json:"output1"`
}

type dailyPriceResponse struct {
	Output []struct {
		StckBsopDate string `json:"stck_bsop_date"`
		StckOprc     string `json:"stck_oprc"`
		StckHgpr     string `json:"stck_hgpr"`
		StckLwpr     string `json:"stck_lwpr"`
		StckClpr     string `json:"stck_clpr"`
		AcmlVol      string `json:"acml_vol"`
	} `json:"output"`
}

type indexPriceResponse struct {
	Output struct {
		BstpNmixPrpr     string `json:"bstp_nmix_prpr"`
		BstpNmixPrdyVrss string `json:"bstp_nmix_prdy_vrss"`
		BstpNmixPrdyCtrt string `json:"bstp_nmix_prdy_ctrt"`
	} `json:"output"`
}

type indexTimePriceResponse struct {
	Output []struct {
		BsopHour     string `json:"bsop_hour"`
		BstpNmixPrpr string `json:"bstp_nmix_prpr"`
		CntgVol      string `json:"cntg_vol"`
	} `json:"output"`
}

type volumeRankResponse struct {
	Output []struct {
		DataRank     string `json:"data_rank"`
		HtsKorIsnm   string `json:"hts_kor_isnm"`
		MkscShrnIscd string `json:"mksc_shrn_iscd"`
		StckPrpr     string `json:"stck_prpr"`
		PrdyVrss     string `json:"prdy_vrss"`
		PrdyCtrt     string `json:"prdy_ctrt"`
		AcmlVol      string `json:"acml_vol"`
		AcmlTrPbmn   string `json:"acml_tr_pbmn"`
	} `json:"output"`
}

type balanceResponse struct {
	Output1 []struct {
		Pdno        string `json:"pdno"`
		PrdtName    string `json:"prdt_name"`
		HldgQty     string `json:"hldg_qty"`
		PchsAvgPric string `json:"pchs_avg_pric"`
		Prpr        string `json:"prpr"`
		EvluAmt     string `json:"evlu_amt"`
		EvluPflsAmt string `json:"evlu_pfls_amt"`
		EvluPflsRt  string `json:"evlu_pfls_rt"`
	} `json:"output1"`
	Output2 []struct {
		DncaTotAmt      string `json:"dnca_tot_amt"`
		PrvsRcdlExccAmt string `json:"prvs_rcdl_excc_amt"`
		TotEvluAmt      string `json:"tot_evlu_amt"`
		EvluPflsSmtlAmt string `json:"evlu_pfls_smtl_amt"`
		PchsAmtSmtlAmt  string `json:"pchs_amt_smtl_amt"`
	} `json:"output2"`
}

type orderCashRequest struct {
	CANO       string `json:"CANO"`
	AcntPrdtCd string `json:"ACNT_PRDT_CD"`
	Pdno       string `json:"PDNO"`
	OrdDvsn    string `json:"ORD_DVSN"`
	OrdQty     string `json:"ORD_QTY"`
	OrdUnpr    string `json:"ORD_UNPR"`
}

type orderCashResponse struct {
	Msg1   string `json:"msg1"`
	Output struct {
		KrxFwdgOrdOrgno string `json:"KRX_FWDG_ORD_ORGNO"`
		Odno            string `json:"ODNO"`
		OrdTmd          string `json:"ORD_TMD"`
	} `json:"output"`
}
